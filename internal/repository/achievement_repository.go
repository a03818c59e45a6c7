package repository

import (
	"context"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

type AchievementRepository struct {
	Store docstore.Store
}

func NewAchievementRepository(store docstore.Store) *AchievementRepository {
	return &AchievementRepository{Store: store}
}

// Exists 授予前的存在性检查，成就授予的幂等性依赖它
func (r *AchievementRepository) Exists(ctx context.Context, userID, ruleID string) (bool, error) {
	_, err := r.Store.Get(ctx, model.CollectionAchievements, model.AchievementKey(userID, ruleID))
	if err == docstore.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	data, err := docstore.Encode(a)
	if err != nil {
		return err
	}
	data["unlockedAt"] = docstore.ServerTimestamp
	return r.Store.Create(ctx, model.CollectionAchievements, a.ID, data)
}

func (r *AchievementRepository) FindByUser(ctx context.Context, userID string) ([]model.Achievement, error) {
	docs, err := r.Store.Query(ctx, model.CollectionAchievements,
		[]docstore.Filter{docstore.Where("userId", "==", userID)},
		docstore.OrderBy("unlockedAt", true),
	)
	if err != nil {
		return nil, err
	}
	achievements := make([]model.Achievement, 0, len(docs))
	for i := range docs {
		var a model.Achievement
		if err := docstore.Decode(&docs[i], &a); err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, nil
}
