package service

import (
	"context"
	"errors"
	"time"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/util"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"
	"course_market_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ProgressService 进度更新编排器：报名文档的唯一写入方。
// 从课时完成事件出发，读当前报名、重算完成集合/百分比/当前与下一课时/状态，
// 单次合并写回；在本次调用内发生 active→completed 跃迁时，
// 恰好触发一次结课副作用。跨进程不加锁，见 DESIGN.md 的丢失更新说明。
type ProgressService struct {
	CourseRepo      *repository.CourseRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	CertificateRepo *repository.CertificateRepository
	StatsRepo       *repository.StatsRepository
	Completion      *CompletionService

	cache       *progressCache
	unsubscribe func()
}

func NewProgressService(
	store docstore.Store,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	certificateRepo *repository.CertificateRepository,
	statsRepo *repository.StatsRepository,
	completion *CompletionService,
) *ProgressService {
	s := &ProgressService{
		CourseRepo:      courseRepo,
		EnrollmentRepo:  enrollmentRepo,
		CertificateRepo: certificateRepo,
		StatsRepo:       statsRepo,
		Completion:      completion,
		cache:           newProgressCache(),
	}
	// 远端变更推送只负责失效缓存条目，触发下次读取回源
	s.unsubscribe = store.Subscribe(model.CollectionEnrollments, func(ev docstore.Event) {
		s.cache.invalidate(ev.ID)
	})
	return s
}

// Close 取消变更订阅
func (s *ProgressService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// RecordLessonCompletion 唯一的进度变更入口。
// completed 为 false 时从完成集合移除课时；已 completed 的报名状态不回退。
func (s *ProgressService) RecordLessonCompletion(ctx context.Context, userID, courseID, lessonID string, completed bool) (*model.Enrollment, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		monitoring.LessonCompletions.WithLabelValues("course_not_found").Inc()
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}

	enrollment, err := s.EnrollmentRepo.Get(ctx, userID, courseID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		created, cerr := s.createFromEvent(ctx, course, userID, lessonID, completed)
		if cerr == nil {
			return created, nil
		}
		if !errors.Is(cerr, docstore.ErrAlreadyExists) {
			// 建档写入已成功时报名即是权威结果，副作用失败随错误一并返回
			return created, cerr
		}
		// 创建竞争落败，对端已建档，重读后走更新路径
		enrollment, err = s.EnrollmentRepo.Get(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	return s.applyEvent(ctx, course, enrollment, userID, lessonID, completed)
}

// createFromEvent 首个完成事件建档：完成集合、指针、百分比一次算齐
func (s *ProgressService) createFromEvent(ctx context.Context, course *model.Course, userID, lessonID string, completed bool) (*model.Enrollment, error) {
	total := course.TotalLessons()
	e := model.NewEnrollment(userID, course.ID, total)
	if completed {
		e.Progress.CompletedLessons = []string{lessonID}
	}
	e.Progress.CurrentLesson = lessonID
	e.Progress.NextLesson = course.NextLesson(lessonID)
	e.Progress.Progress = ProgressPercentage(len(e.Progress.CompletedLessons), total)
	if IsComplete(e.Progress.Progress) {
		e.Status = model.EnrollmentCompleted
	}

	if err := s.EnrollmentRepo.Create(ctx, e); err != nil {
		return nil, err
	}
	e.Progress.LastAccessed = time.Now().UTC()
	s.cache.set(e.ID, *e)
	monitoring.LessonCompletions.WithLabelValues("ok").Inc()

	if err := s.recordEnrollmentCreated(ctx, userID, course); err != nil {
		return e, err
	}

	// 单课时课程：建档即结课
	if e.Status == model.EnrollmentCompleted {
		monitoring.CourseCompletions.Inc()
		if err := s.Completion.OnCourseCompleted(ctx, userID, course); err != nil {
			return e, err
		}
	}
	return e, nil
}

// applyEvent 已有报名的状态机推进，单次合并写持久化
func (s *ProgressService) applyEvent(ctx context.Context, course *model.Course, enrollment *model.Enrollment, userID, lessonID string, completed bool) (*model.Enrollment, error) {
	prevStatus := enrollment.Status

	newSet := make([]string, 0, len(enrollment.Progress.CompletedLessons)+1)
	for _, id := range enrollment.Progress.CompletedLessons {
		if id != lessonID {
			newSet = append(newSet, id)
		}
	}
	if completed {
		newSet = append(newSet, lessonID)
	}

	total := course.TotalLessons()
	pct := ProgressPercentage(len(newSet), total)
	status := prevStatus
	if IsComplete(pct) {
		status = model.EnrollmentCompleted
	}
	current := lessonID
	next := course.NextLesson(lessonID)

	err := s.EnrollmentRepo.Patch(ctx, userID, course.ID, repository.EnrollmentPatch{
		Status:           &status,
		CompletedLessons: newSet,
		Progress:         &pct,
		TotalLessons:     &total,
		CurrentLesson:    &current,
		NextLesson:       &next,
	})
	if err != nil {
		monitoring.LessonCompletions.WithLabelValues("error").Inc()
		return nil, err
	}

	result := *enrollment
	result.Status = status
	result.Progress = model.EnrollmentProgress{
		CompletedLessons: newSet,
		Progress:         pct,
		TotalLessons:     total,
		CurrentLesson:    current,
		NextLesson:       next,
		LastAccessed:     time.Now().UTC(),
	}
	s.cache.set(result.ID, result)
	monitoring.LessonCompletions.WithLabelValues("ok").Inc()

	// 结课跃迁判定读的是写入前快照，不是缓存，保证恰好一次
	if prevStatus != model.EnrollmentCompleted && status == model.EnrollmentCompleted {
		monitoring.CourseCompletions.Inc()
		logger.Log.Info("course completed",
			zap.String("userId", userID), zap.String("courseId", course.ID))
		if err := s.Completion.OnCourseCompleted(ctx, userID, course); err != nil {
			// 报名写入已成功，结课状态已是权威；副作用交给重试补齐
			return &result, err
		}
	}
	return &result, nil
}

// Enroll 显式报名。创建竞争落败视为已报名，重读返回现状。
func (s *ProgressService) Enroll(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, util.ErrCourseNotPublished
	}

	e := model.NewEnrollment(userID, courseID, course.TotalLessons())
	if flat := course.FlattenLessons(); len(flat) > 0 {
		e.Progress.NextLesson = flat[0]
	}
	err = s.EnrollmentRepo.Create(ctx, e)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return s.EnrollmentRepo.Get(ctx, userID, courseID)
	}
	if err != nil {
		return nil, err
	}
	e.Progress.LastAccessed = time.Now().UTC()
	s.cache.set(e.ID, *e)

	if err := s.recordEnrollmentCreated(ctx, userID, course); err != nil {
		return e, err
	}
	return e, nil
}

// recordEnrollmentCreated 报名建档路径的统计递增
func (s *ProgressService) recordEnrollmentCreated(ctx context.Context, userID string, course *model.Course) error {
	if err := s.StatsRepo.Increment(ctx, userID, model.StatCoursesEnrolled, 1); err != nil {
		return err
	}
	if course.InstructorID != "" {
		return s.StatsRepo.Increment(ctx, course.InstructorID, model.StatStudentsEnrolled, 1)
	}
	return nil
}

// EnrollmentStatusView 只读投影，喂给课程页/播放器
type EnrollmentStatusView struct {
	Enrolled          bool                   `json:"enrolled"`
	Status            model.EnrollmentStatus `json:"status,omitempty"`
	Progress          int                    `json:"progress"`
	Completed         bool                   `json:"completed"`
	CurrentLesson     string                 `json:"currentLesson,omitempty"`
	NextLesson        string                 `json:"nextLesson,omitempty"`
	CompletedLessons  []string               `json:"completedLessons,omitempty"`
	CertificateIssued bool                   `json:"certificateIssued"`
}

func (s *ProgressService) GetEnrollmentStatus(ctx context.Context, userID, courseID string) (*EnrollmentStatusView, error) {
	enrollment, err := s.loadEnrollment(ctx, userID, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &EnrollmentStatusView{}, nil
	}
	if err != nil {
		return nil, err
	}

	view := &EnrollmentStatusView{
		Enrolled:         true,
		Status:           enrollment.Status,
		Progress:         enrollment.Progress.Progress,
		Completed:        enrollment.Status == model.EnrollmentCompleted,
		CurrentLesson:    enrollment.Progress.CurrentLesson,
		NextLesson:       enrollment.Progress.NextLesson,
		CompletedLessons: enrollment.Progress.CompletedLessons,
	}
	if view.Completed {
		_, err := s.CertificateRepo.Get(ctx, userID, courseID)
		switch {
		case err == nil:
			view.CertificateIssued = true
		case errors.Is(err, docstore.ErrNotFound):
			// 证书签发允许滞后于结课
		default:
			return nil, err
		}
	}
	return view, nil
}

// GetCourseProgress 便捷读；未报名返回 0
func (s *ProgressService) GetCourseProgress(ctx context.Context, userID, courseID string) (int, error) {
	enrollment, err := s.loadEnrollment(ctx, userID, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return enrollment.Progress.Progress, nil
}

// AccessStatus 访问检查结果。免费课首次访问时自动报名，
// 这是查询路径上显式文档化的状态变更。
type AccessStatus struct {
	HasAccess        bool                   `json:"hasAccess"`
	EnrollmentStatus model.EnrollmentStatus `json:"enrollmentStatus,omitempty"`
	AutoEnrolled     bool                   `json:"autoEnrolled,omitempty"`
}

func (s *ProgressService) CheckAccessStatus(ctx context.Context, userID, courseID string) (*AccessStatus, error) {
	course, err := s.CourseRepo.Get(ctx, courseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}

	enrollment, err := s.loadEnrollment(ctx, userID, courseID)
	if err == nil {
		return &AccessStatus{HasAccess: true, EnrollmentStatus: enrollment.Status}, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}

	if course.Published && course.IsFree() {
		e, err := s.Enroll(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		return &AccessStatus{HasAccess: true, EnrollmentStatus: e.Status, AutoEnrolled: true}, nil
	}
	return &AccessStatus{HasAccess: false}, nil
}

// loadEnrollment 读穿缓存：命中直接返回，未命中回源并机会性填充
func (s *ProgressService) loadEnrollment(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	key := model.EnrollmentKey(userID, courseID)
	if cached, ok := s.cache.get(key); ok {
		monitoring.ProgressCacheHits.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	monitoring.ProgressCacheHits.WithLabelValues("miss").Inc()
	enrollment, err := s.EnrollmentRepo.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, *enrollment)
	return enrollment, nil
}
