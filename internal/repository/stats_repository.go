package repository

import (
	"context"
	"errors"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

// StatsRepository 用户聚合计数。计数器只走存储端原子递增，
// 从不读改写，避免普通字段合并写固有的丢失更新。
type StatsRepository struct {
	Store docstore.Store
}

func NewStatsRepository(store docstore.Store) *StatsRepository {
	return &StatsRepository{Store: store}
}

func (r *StatsRepository) Get(ctx context.Context, userID string) (*model.UserStats, error) {
	doc, err := r.Store.Get(ctx, model.CollectionUserStats, userID)
	if err != nil {
		return nil, err
	}
	var stats model.UserStats
	if err := docstore.Decode(doc, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// EnsureExists 惰性创建基线文档；并发创建竞争视为成功
func (r *StatsRepository) EnsureExists(ctx context.Context, userID string) error {
	data, err := docstore.Encode(model.NewUserStats(userID))
	if err != nil {
		return err
	}
	err = r.Store.Create(ctx, model.CollectionUserStats, userID, data)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil
	}
	return err
}

// Increment 原子递增单个计数字段，文档不存在时先补基线再递增
func (r *StatsRepository) Increment(ctx context.Context, userID, field string, delta float64) error {
	err := r.Store.Increment(ctx, model.CollectionUserStats, userID, field, delta)
	if errors.Is(err, docstore.ErrNotFound) {
		if err := r.EnsureExists(ctx, userID); err != nil {
			return err
		}
		return r.Store.Increment(ctx, model.CollectionUserStats, userID, field, delta)
	}
	return err
}
