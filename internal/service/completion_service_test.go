package service

import (
	"context"
	"testing"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompletionFixture() (*CompletionService, *repository.StatsRepository, *repository.CertificateRepository, *repository.AchievementRepository) {
	store := docstore.NewMemStore()
	certRepo := repository.NewCertificateRepository(store)
	statsRepo := repository.NewStatsRepository(store)
	achievementRepo := repository.NewAchievementRepository(store)
	return NewCompletionService(certRepo, statsRepo, achievementRepo), statsRepo, certRepo, achievementRepo
}

func completionCourse() *model.Course {
	return &model.Course{
		ID:             "c1",
		Title:          "SQL 进阶",
		InstructorID:   "t1",
		InstructorName: "Ada",
		Skills:         []string{"sql"},
		Modules: []model.Module{
			{ID: "m1", Lessons: []model.Lesson{
				{ID: "l1", Type: model.LessonVideo, Duration: 90},
				{ID: "l2", Type: model.LessonProject, Duration: 30},
			}},
		},
	}
}

func TestOnCourseCompleted(t *testing.T) {
	svc, statsRepo, certRepo, _ := newCompletionFixture()
	ctx := context.Background()

	require.NoError(t, svc.OnCourseCompleted(ctx, "u1", completionCourse()))

	cert, err := certRepo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "SQL 进阶", cert.CourseTitle)
	assert.Equal(t, "Ada", cert.InstructorName)
	assert.Equal(t, "pass", cert.Metadata.Grade)
	assert.Equal(t, []string{"sql"}, cert.Metadata.Skills)
	assert.False(t, cert.IssuedAt.IsZero())

	stats, err := statsRepo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedCourses)
	assert.Equal(t, 1, stats.Certificates)
	assert.Equal(t, 2.0, stats.HoursLearned)
	assert.Equal(t, 1, stats.ProjectsCompleted)
	assert.Equal(t, 2, stats.Achievements) // first_course + first_project

	instructorStats, err := statsRepo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, instructorStats.StudentsCompleted)
}

func TestOnCourseCompletedRetryDoesNotDuplicateCertificate(t *testing.T) {
	svc, statsRepo, certRepo, _ := newCompletionFixture()
	ctx := context.Background()
	course := completionCourse()

	require.NoError(t, svc.OnCourseCompleted(ctx, "u1", course))
	first, err := certRepo.Get(ctx, "u1", "c1")
	require.NoError(t, err)

	// 超时重试场景：第二次调用不会重发证书，也不会二次累计证书数
	require.NoError(t, svc.OnCourseCompleted(ctx, "u1", course))

	second, err := certRepo.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, first.VerificationCode, second.VerificationCode)

	stats, err := statsRepo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Certificates)
}

func TestEvaluateAchievementsIsIdempotent(t *testing.T) {
	svc, statsRepo, _, achievementRepo := newCompletionFixture()
	ctx := context.Background()

	require.NoError(t, statsRepo.Increment(ctx, "u1", model.StatCompletedCourses, 1))

	require.NoError(t, svc.EvaluateAchievements(ctx, "u1"))
	require.NoError(t, svc.EvaluateAchievements(ctx, "u1"))

	unlocked, err := achievementRepo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_course", unlocked[0].RuleID)
	assert.False(t, unlocked[0].UnlockedAt.IsZero())

	stats, err := statsRepo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Achievements)
}

func TestEvaluateAchievementsThresholds(t *testing.T) {
	svc, statsRepo, _, achievementRepo := newCompletionFixture()
	ctx := context.Background()

	require.NoError(t, statsRepo.Increment(ctx, "u1", model.StatCompletedCourses, 4))
	require.NoError(t, svc.EvaluateAchievements(ctx, "u1"))

	exists, err := achievementRepo.Exists(ctx, "u1", "five_courses")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, statsRepo.Increment(ctx, "u1", model.StatCompletedCourses, 1))
	require.NoError(t, svc.EvaluateAchievements(ctx, "u1"))

	exists, err = achievementRepo.Exists(ctx, "u1", "five_courses")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEvaluateAchievementsWithoutStats(t *testing.T) {
	svc, _, _, achievementRepo := newCompletionFixture()

	// 统计文档还不存在时求值直接跳过，不报错
	require.NoError(t, svc.EvaluateAchievements(context.Background(), "ghost"))

	unlocked, err := achievementRepo.FindByUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}
