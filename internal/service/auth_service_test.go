package service

import (
	"context"
	"testing"
	"time"

	"course_market_backend/internal/config"
	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*AuthService, *repository.StatsRepository) {
	store := docstore.NewMemStore()
	userRepo := repository.NewUserRepository(store)
	statsRepo := repository.NewStatsRepository(store)
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(userRepo, statsRepo, cfg), statsRepo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, statsRepo := newAuthFixture()
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ada", "ada@example.com", "strong-pass-1", model.Instructor)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, model.Instructor, user.Role)
	// 口令散列不是明文
	assert.NotEqual(t, "strong-pass-1", user.PasswordHash)

	// 注册即建统计文档
	_, err = statsRepo.Get(ctx, user.ID)
	require.NoError(t, err)

	// 邮箱唯一
	_, err = svc.Register(ctx, "Eve", "ada@example.com", "another-pass", model.Student)
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	token, logged, err := svc.Login(ctx, "ada@example.com", "strong-pass-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Instructor, claims.Role)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestRegisterDefaultsToStudent(t *testing.T) {
	svc, _ := newAuthFixture()

	user, err := svc.Register(context.Background(), "Bob", "bob@example.com", "strong-pass-1", "admin")
	require.NoError(t, err)
	// 注册入口不允许自封管理员
	assert.Equal(t, model.Student, user.Role)
}
