package repository

import (
	"context"
	"testing"

	"course_market_backend/internal/model"
	"course_market_backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRepositoryCreateAndGet(t *testing.T) {
	repo := NewEnrollmentRepository(docstore.NewMemStore())
	ctx := context.Background()

	e := model.NewEnrollment("u1", "c1", 4)
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1_c1", got.ID)
	assert.Equal(t, model.EnrollmentActive, got.Status)
	assert.Equal(t, 4, got.Progress.TotalLessons)
	assert.Empty(t, got.Progress.CompletedLessons)
	// 服务端时间戳在写入时落盘
	assert.False(t, got.EnrolledAt.IsZero())
	assert.False(t, got.Progress.LastAccessed.IsZero())

	err = repo.Create(ctx, model.NewEnrollment("u1", "c1", 4))
	assert.ErrorIs(t, err, docstore.ErrAlreadyExists)

	_, err = repo.Get(ctx, "u1", "other")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestEnrollmentRepositoryPatch(t *testing.T) {
	repo := NewEnrollmentRepository(docstore.NewMemStore())
	ctx := context.Background()

	err := repo.Patch(ctx, "u1", "c1", EnrollmentPatch{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	e := model.NewEnrollment("u1", "c1", 4)
	e.Progress.CompletedLessons = []string{"l1"}
	e.Progress.Progress = 25
	e.Progress.CurrentLesson = "l1"
	e.Progress.NextLesson = "l2"
	require.NoError(t, repo.Create(ctx, e))

	// 只更新部分字段：未提及的字段保持不变
	pct := 50
	next := "l3"
	require.NoError(t, repo.Patch(ctx, "u1", "c1", EnrollmentPatch{
		CompletedLessons: []string{"l1", "l2"},
		Progress:         &pct,
		NextLesson:       &next,
	}))

	got, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2"}, got.Progress.CompletedLessons)
	assert.Equal(t, 50, got.Progress.Progress)
	assert.Equal(t, "l3", got.Progress.NextLesson)
	// 补丁没有携带的字段
	assert.Equal(t, "l1", got.Progress.CurrentLesson)
	assert.Equal(t, model.EnrollmentActive, got.Status)
	assert.Equal(t, 4, got.Progress.TotalLessons)

	// 状态跃迁
	completed := model.EnrollmentCompleted
	require.NoError(t, repo.Patch(ctx, "u1", "c1", EnrollmentPatch{Status: &completed}))
	got, err = repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
	assert.Equal(t, []string{"l1", "l2"}, got.Progress.CompletedLessons)
}

func TestEnrollmentRepositoryPatchTouchesLastAccessed(t *testing.T) {
	repo := NewEnrollmentRepository(docstore.NewMemStore())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.NewEnrollment("u1", "c1", 2)))
	before, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)

	pct := 50
	require.NoError(t, repo.Patch(ctx, "u1", "c1", EnrollmentPatch{Progress: &pct}))

	after, err := repo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, after.Progress.LastAccessed.Before(before.Progress.LastAccessed))
}

func TestEnrollmentRepositoryFind(t *testing.T) {
	repo := NewEnrollmentRepository(docstore.NewMemStore())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.NewEnrollment("u1", "c1", 2)))
	require.NoError(t, repo.Create(ctx, model.NewEnrollment("u1", "c2", 3)))
	require.NoError(t, repo.Create(ctx, model.NewEnrollment("u2", "c1", 2)))

	mine, err := repo.FindByUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	cohort, err := repo.FindByCourse(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, cohort, 2)

	none, err := repo.FindByUser(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
