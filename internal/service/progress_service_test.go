package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore 包装底层存储，统计 Get 次数，用于验证缓存是否真的省掉了回源
type countingStore struct {
	docstore.Store
	gets int64
}

func (s *countingStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	atomic.AddInt64(&s.gets, 1)
	return s.Store.Get(ctx, collection, id)
}

type progressFixture struct {
	store    *countingStore
	svc      *ProgressService
	course   *model.Course
	courses  *repository.CourseRepository
	stats    *repository.StatsRepository
	certs    *repository.CertificateRepository
	unlocked *repository.AchievementRepository
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	store := &countingStore{Store: docstore.NewMemStore()}

	courseRepo := repository.NewCourseRepository(store)
	enrollmentRepo := repository.NewEnrollmentRepository(store)
	certRepo := repository.NewCertificateRepository(store)
	statsRepo := repository.NewStatsRepository(store)
	achievementRepo := repository.NewAchievementRepository(store)

	completion := NewCompletionService(certRepo, statsRepo, achievementRepo)
	svc := NewProgressService(store, courseRepo, enrollmentRepo, certRepo, statsRepo, completion)
	t.Cleanup(svc.Close)

	course := &model.Course{
		ID:             "go-course",
		Title:          "Go 后端开发",
		InstructorID:   "instructor-1",
		InstructorName: "Ada",
		Published:      true,
		Modules: []model.Module{
			{ID: "m1", Title: "基础", Lessons: []model.Lesson{
				{ID: "l1", Title: "语法", Type: model.LessonVideo, Duration: 30},
				{ID: "l2", Title: "接口", Type: model.LessonText, Duration: 30},
			}},
			{ID: "m2", Title: "实战", Lessons: []model.Lesson{
				{ID: "l3", Title: "服务", Type: model.LessonVideo, Duration: 30},
				{ID: "l4", Title: "项目", Type: model.LessonProject, Duration: 30},
			}},
		},
	}
	require.NoError(t, courseRepo.Create(context.Background(), course))

	return &progressFixture{
		store:    store,
		svc:      svc,
		course:   course,
		courses:  courseRepo,
		stats:    statsRepo,
		certs:    certRepo,
		unlocked: achievementRepo,
	}
}

func TestRecordLessonCompletionWalkthrough(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	// 首次打卡自动建档
	e, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, e.Status)
	assert.Equal(t, 25, e.Progress.Progress)
	assert.Equal(t, "l1", e.Progress.CurrentLesson)
	assert.Equal(t, "l2", e.Progress.NextLesson)
	assert.Equal(t, 4, e.Progress.TotalLessons)

	// 报名侧统计随建档写入
	stats, err := f.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesEnrolled)
	instructorStats, err := f.stats.Get(ctx, "instructor-1")
	require.NoError(t, err)
	assert.Equal(t, 1, instructorStats.StudentsEnrolled)

	e, err = f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l2", true)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress.Progress)
	// 跨模块的下一课时
	assert.Equal(t, "l3", e.Progress.NextLesson)

	e, err = f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l3", true)
	require.NoError(t, err)
	assert.Equal(t, 75, e.Progress.Progress)
	assert.Equal(t, model.EnrollmentActive, e.Status)

	// 证书在全部完成前不存在
	_, err = f.certs.Get(ctx, "u1", "go-course")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	// 最后一课：结课跃迁
	e, err = f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l4", true)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Progress.Progress)
	assert.Equal(t, model.EnrollmentCompleted, e.Status)
	assert.Equal(t, "", e.Progress.NextLesson)

	cert, err := f.certs.Get(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.Equal(t, "Go 后端开发", cert.CourseTitle)
	assert.NotEmpty(t, cert.VerificationCode)

	stats, err = f.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedCourses)
	assert.Equal(t, 1, stats.Certificates)
	assert.Equal(t, 2.0, stats.HoursLearned) // 120 分钟
	assert.Equal(t, 1, stats.ProjectsCompleted)

	instructorStats, err = f.stats.Get(ctx, "instructor-1")
	require.NoError(t, err)
	assert.Equal(t, 1, instructorStats.StudentsCompleted)

	// 首课成就解锁
	got, err := f.unlocked.Exists(ctx, "u1", "first_course")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestRecordLessonCompletionUncomplete(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)
	_, err = f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l2", true)
	require.NoError(t, err)

	// 进行中的报名允许回退进度
	e, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l2", false)
	require.NoError(t, err)
	assert.Equal(t, 25, e.Progress.Progress)
	assert.Equal(t, []string{"l1"}, e.Progress.CompletedLessons)
	assert.Equal(t, model.EnrollmentActive, e.Status)
}

func TestCompletedStatusNeverReverts(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	for _, lesson := range []string{"l1", "l2", "l3", "l4"} {
		_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", lesson, true)
		require.NoError(t, err)
	}

	// 取消一课：百分比回落，状态保持 completed
	e, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l3", false)
	require.NoError(t, err)
	assert.Equal(t, 75, e.Progress.Progress)
	assert.Equal(t, model.EnrollmentCompleted, e.Status)

	// 再补回来：不会第二次发证或加计数
	_, err = f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l3", true)
	require.NoError(t, err)

	stats, err := f.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedCourses)
	assert.Equal(t, 1, stats.Certificates)
}

func TestRecordLessonCompletionCourseMissing(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.svc.RecordLessonCompletion(context.Background(), "u1", "no-such-course", "l1", true)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	// 任何文档都不应被写入
	_, err = f.stats.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestRepeatedCompletionIsIdempotent(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)
	e, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"l1"}, e.Progress.CompletedLessons)
	assert.Equal(t, 25, e.Progress.Progress)

	// 重复打卡不重复累计报名数
	stats, err := f.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesEnrolled)
}

func TestGetCourseProgressUsesCacheAfterOwnWrite(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)

	before := atomic.LoadInt64(&f.store.gets)
	pct, err := f.svc.GetCourseProgress(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.Equal(t, 25, pct)
	// 自己刚写过的进度直接命中缓存，不回源
	assert.Equal(t, before, atomic.LoadInt64(&f.store.gets))
}

func TestCacheInvalidatedByRemoteChange(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", "l1", true)
	require.NoError(t, err)

	// 模拟另一进程直接改写报名文档
	enrollmentRepo := repository.NewEnrollmentRepository(f.store)
	pct := 50
	require.NoError(t, enrollmentRepo.Patch(ctx, "u1", "go-course", repository.EnrollmentPatch{Progress: &pct}))

	got, err := f.svc.GetCourseProgress(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

// 存储没有 CAS：两个写入方基于同一快照各算补丁时，后写覆盖先写，
// 先写的课时从完成集合里丢失。计数器只走 Increment，不受此竞态影响。
func TestConcurrentCompletionsLoseUpdates(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, "u1", "go-course")
	require.NoError(t, err)
	enrollmentRepo := repository.NewEnrollmentRepository(f.store)

	// 两个标签页读到同一份空进度快照
	snapA, err := enrollmentRepo.Get(ctx, "u1", "go-course")
	require.NoError(t, err)
	snapB, err := enrollmentRepo.Get(ctx, "u1", "go-course")
	require.NoError(t, err)

	total := f.course.TotalLessons()
	setA := append(append([]string{}, snapA.Progress.CompletedLessons...), "l1")
	pctA := ProgressPercentage(len(setA), total)
	require.NoError(t, enrollmentRepo.Patch(ctx, "u1", "go-course", repository.EnrollmentPatch{
		CompletedLessons: setA, Progress: &pctA,
	}))

	setB := append(append([]string{}, snapB.Progress.CompletedLessons...), "l2")
	pctB := ProgressPercentage(len(setB), total)
	require.NoError(t, enrollmentRepo.Patch(ctx, "u1", "go-course", repository.EnrollmentPatch{
		CompletedLessons: setB, Progress: &pctB,
	}))

	final, err := enrollmentRepo.Get(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.Equal(t, []string{"l2"}, final.Progress.CompletedLessons)
	assert.NotContains(t, final.Progress.CompletedLessons, "l1")
	assert.Equal(t, 25, final.Progress.Progress)
}

// faultStore 注入底层存储故障，模拟副作用步骤的部分失败
type faultStore struct {
	docstore.Store
	failIncrements bool
}

func (s *faultStore) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	if s.failIncrements {
		return errors.New("stats backend unavailable")
	}
	return s.Store.Increment(ctx, collection, id, field, delta)
}

// 建档写入成功后统计步骤失败：报名已是权威状态，要随错误一并返回
func TestCreatedEnrollmentReturnedOnSideEffectFailure(t *testing.T) {
	store := &faultStore{Store: docstore.NewMemStore(), failIncrements: true}
	courseRepo := repository.NewCourseRepository(store)
	enrollmentRepo := repository.NewEnrollmentRepository(store)
	certRepo := repository.NewCertificateRepository(store)
	statsRepo := repository.NewStatsRepository(store)
	completion := NewCompletionService(certRepo, statsRepo, repository.NewAchievementRepository(store))
	svc := NewProgressService(store, courseRepo, enrollmentRepo, certRepo, statsRepo, completion)
	t.Cleanup(svc.Close)

	course := &model.Course{ID: "mini", InstructorID: "instructor-1", Published: true,
		Modules: []model.Module{{ID: "m1", Lessons: []model.Lesson{
			{ID: "l1", Type: model.LessonVideo},
			{ID: "l2", Type: model.LessonText},
		}}}}
	require.NoError(t, courseRepo.Create(context.Background(), course))

	e, err := svc.RecordLessonCompletion(context.Background(), "u1", "mini", "l1", true)
	require.Error(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 50, e.Progress.Progress)
	assert.Equal(t, []string{"l1"}, e.Progress.CompletedLessons)

	persisted, err := enrollmentRepo.Get(context.Background(), "u1", "mini")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, persisted.Progress.CompletedLessons)
}

func TestEnroll(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	e, err := f.svc.Enroll(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, e.Status)
	assert.Equal(t, 0, e.Progress.Progress)
	assert.Equal(t, "l1", e.Progress.NextLesson)

	// 重复报名返回现有记录，不叠加统计
	_, err = f.svc.Enroll(ctx, "u1", "go-course")
	require.NoError(t, err)
	stats, err := f.stats.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesEnrolled)

	// 未发布课程拒绝报名
	draft := &model.Course{ID: "draft", InstructorID: "instructor-1", Published: false,
		Modules: []model.Module{{ID: "m", Lessons: []model.Lesson{{ID: "x"}}}}}
	require.NoError(t, f.courses.Create(ctx, draft))
	_, err = f.svc.Enroll(ctx, "u1", "draft")
	assert.ErrorIs(t, err, util.ErrCourseNotPublished)
}

func TestGetEnrollmentStatus(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	view, err := f.svc.GetEnrollmentStatus(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.False(t, view.Enrolled)

	for _, lesson := range []string{"l1", "l2", "l3", "l4"} {
		_, err := f.svc.RecordLessonCompletion(ctx, "u1", "go-course", lesson, true)
		require.NoError(t, err)
	}

	view, err = f.svc.GetEnrollmentStatus(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.True(t, view.Enrolled)
	assert.True(t, view.Completed)
	assert.Equal(t, 100, view.Progress)
	assert.True(t, view.CertificateIssued)
}

func TestCheckAccessStatus(t *testing.T) {
	f := newProgressFixture(t)
	ctx := context.Background()

	// 免费已发布课程首次访问自动报名
	status, err := f.svc.CheckAccessStatus(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.True(t, status.HasAccess)
	assert.True(t, status.AutoEnrolled)

	status, err = f.svc.CheckAccessStatus(ctx, "u1", "go-course")
	require.NoError(t, err)
	assert.True(t, status.HasAccess)
	assert.False(t, status.AutoEnrolled)

	// 付费课程未报名时拒绝
	paid := &model.Course{ID: "paid", InstructorID: "instructor-1", Published: true, Price: 99,
		Modules: []model.Module{{ID: "m", Lessons: []model.Lesson{{ID: "x"}}}}}
	require.NoError(t, f.courses.Create(ctx, paid))

	status, err = f.svc.CheckAccessStatus(ctx, "u2", "paid")
	require.NoError(t, err)
	assert.False(t, status.HasAccess)
}
