package service

import (
	"context"
	"errors"

	"course_market_backend/internal/config"
	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo  *repository.UserRepository
	StatsRepo *repository.StatsRepository
	Cfg       *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, statsRepo *repository.StatsRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:  userRepo,
		StatsRepo: statsRepo,
		Cfg:       cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string, role model.UserRole) (*model.User, error) {
	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	if role != model.Instructor {
		role = model.Student
	}
	user := &model.User{
		ID:           model.GenerateUUID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	// 统计文档与用户同生命周期，注册即建
	if err := s.StatsRepo.EnsureExists(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	_ = s.UserRepo.TouchLastLogin(ctx, user.ID)
	return token, user, nil
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, _ := s.UserRepo.FindByID(c.Request.Context(), claims.UserID)
	return user
}
