package service

import (
	"context"
	"errors"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"
)

type UserService struct {
	UserRepo  *repository.UserRepository
	StatsRepo *repository.StatsRepository
}

func NewUserService(userRepo *repository.UserRepository, statsRepo *repository.StatsRepository) *UserService {
	return &UserService{UserRepo: userRepo, StatsRepo: statsRepo}
}

// Profile 个人资料 + 聚合统计
type Profile struct {
	User  model.User       `json:"user"`
	Stats *model.UserStats `json:"stats"`
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	stats, err := s.StatsRepo.Get(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		// 老用户可能还没有统计文档
		stats = model.NewUserStats(userID)
	} else if err != nil {
		return nil, err
	}

	return &Profile{User: user.Sanitized(), Stats: stats}, nil
}

type ProfileUpdate struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Bio    string `json:"bio"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error) {
	fields := map[string]interface{}{}
	if update.Name != "" {
		fields["name"] = update.Name
	}
	if update.Avatar != "" {
		fields["avatar"] = update.Avatar
	}
	if update.Bio != "" {
		fields["bio"] = update.Bio
	}
	if len(fields) > 0 {
		if err := s.UserRepo.UpdateProfile(ctx, userID, fields); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, util.ErrUserNotFound
			}
			return nil, err
		}
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}
