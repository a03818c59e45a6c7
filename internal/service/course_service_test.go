package service

import (
	"context"
	"testing"

	"course_market_backend/internal/config"
	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCourseFixture(t *testing.T) (*CourseService, *repository.StatsRepository, *repository.EnrollmentRepository) {
	t.Helper()
	store := docstore.NewMemStore()
	courseRepo := repository.NewCourseRepository(store)
	enrollmentRepo := repository.NewEnrollmentRepository(store)
	statsRepo := repository.NewStatsRepository(store)
	svc := NewCourseService(courseRepo, enrollmentRepo, statsRepo, nil, &config.Config{})
	return svc, statsRepo, enrollmentRepo
}

func instructorClaims(id string) *util.Claims {
	return &util.Claims{UserID: id, Role: model.Instructor}
}

func sampleInput() CourseInput {
	return CourseInput{
		Title:    "Go 后端开发",
		Category: "backend",
		Level:    "beginner",
		Price:    29.9,
		Modules: []ModuleInput{
			{Title: "基础", Lessons: []LessonInput{
				{Title: "语法", Type: model.LessonVideo, Duration: 30,
					Content: model.LessonContent{VideoURL: "https://cdn.example.com/v1.mp4"}},
				{Title: "测验", Type: model.LessonQuiz, Duration: 10},
			}},
		},
	}
}

func TestCreateCourseAssignsIDsAndCountsStats(t *testing.T) {
	svc, statsRepo, _ := newCourseFixture(t)
	ctx := context.Background()
	instructor := &model.User{ID: "t1", Name: "Ada", Role: model.Instructor}

	course, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)
	assert.False(t, course.Published)
	require.Len(t, course.Modules, 1)
	assert.NotEmpty(t, course.Modules[0].ID)
	for _, l := range course.Modules[0].Lessons {
		assert.NotEmpty(t, l.ID)
	}

	stats, err := statsRepo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesCreated)
}

func TestSetPublished(t *testing.T) {
	svc, _, _ := newCourseFixture(t)
	ctx := context.Background()
	instructor := &model.User{ID: "t1", Name: "Ada", Role: model.Instructor}

	course, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)

	// 其他讲师无权发布
	_, err = svc.SetPublished(ctx, instructorClaims("t2"), course.ID, true)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	published, err := svc.SetPublished(ctx, instructorClaims("t1"), course.ID, true)
	require.NoError(t, err)
	assert.True(t, published.Published)

	// 空课程不能发布
	empty, err := svc.CreateCourse(ctx, instructor, CourseInput{Title: "空"})
	require.NoError(t, err)
	_, err = svc.SetPublished(ctx, instructorClaims("t1"), empty.ID, true)
	assert.Error(t, err)
}

func TestGetCourseVisibility(t *testing.T) {
	svc, _, enrollmentRepo := newCourseFixture(t)
	ctx := context.Background()
	instructor := &model.User{ID: "t1", Name: "Ada", Role: model.Instructor}

	course, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)

	// 未发布课程对外不可见，对作者可见
	_, err = svc.GetCourse(ctx, nil, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
	got, err := svc.GetCourse(ctx, instructorClaims("t1"), course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)

	_, err = svc.SetPublished(ctx, instructorClaims("t1"), course.ID, true)
	require.NoError(t, err)

	// 付费课：游客拿到的大纲保留课时身份与时长，内容被剥离
	got, err = svc.GetCourse(ctx, nil, course.ID)
	require.NoError(t, err)
	lesson := got.Modules[0].Lessons[0]
	assert.Equal(t, 30, lesson.Duration)
	assert.Empty(t, lesson.Content.VideoURL)

	// 已报名学员拿到完整内容
	studentClaims := &util.Claims{UserID: "u1", Role: model.Student}
	require.NoError(t, enrollmentRepo.Create(ctx, model.NewEnrollment("u1", course.ID, 2)))
	got, err = svc.GetCourse(ctx, studentClaims, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/v1.mp4", got.Modules[0].Lessons[0].Content.VideoURL)
}

func TestDeleteCourseBlockedByEnrollments(t *testing.T) {
	svc, _, enrollmentRepo := newCourseFixture(t)
	ctx := context.Background()
	instructor := &model.User{ID: "t1", Name: "Ada", Role: model.Instructor}

	course, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)
	require.NoError(t, enrollmentRepo.Create(ctx, model.NewEnrollment("u1", course.ID, 2)))

	err = svc.DeleteCourse(ctx, instructorClaims("t1"), course.ID)
	assert.Error(t, err)

	// 无人报名的课程可删除
	other, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCourse(ctx, instructorClaims("t1"), other.ID))
	_, err = svc.GetCourse(ctx, instructorClaims("t1"), other.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestListCatalogFiltersUnpublished(t *testing.T) {
	svc, _, _ := newCourseFixture(t)
	ctx := context.Background()
	instructor := &model.User{ID: "t1", Name: "Ada", Role: model.Instructor}

	draft, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)
	live, err := svc.CreateCourse(ctx, instructor, sampleInput())
	require.NoError(t, err)
	_, err = svc.SetPublished(ctx, instructorClaims("t1"), live.ID, true)
	require.NoError(t, err)

	catalog, err := svc.ListCatalog(ctx, repository.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, live.ID, catalog[0].ID)

	// 讲师后台两门都看得到
	mine, err := svc.ListByInstructor(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	_ = draft
}
