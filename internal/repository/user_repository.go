package repository

import (
	"context"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"
)

type UserRepository struct {
	Store docstore.Store
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{Store: store}
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	doc, err := r.Store.Get(ctx, model.CollectionUsers, userID)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	docs, err := r.Store.Query(ctx, model.CollectionUsers,
		[]docstore.Filter{docstore.Where("email", "==", email)},
		docstore.Limit(1),
	)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	var u model.User
	if err := docstore.Decode(&docs[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	data, err := docstore.Encode(u)
	if err != nil {
		return err
	}
	data["createdAt"] = docstore.ServerTimestamp
	return r.Store.Create(ctx, model.CollectionUsers, u.ID, data)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) error {
	return r.Store.Update(ctx, model.CollectionUsers, userID, fields)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	return r.Store.Update(ctx, model.CollectionUsers, userID, map[string]interface{}{
		"lastLogin": docstore.ServerTimestamp,
	})
}
