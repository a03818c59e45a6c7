package service

import (
	"context"
	"errors"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/pkg/docstore"
)

type DashboardService struct {
	EnrollmentRepo  *repository.EnrollmentRepository
	CourseRepo      *repository.CourseRepository
	CertificateRepo *repository.CertificateRepository
	AchievementRepo *repository.AchievementRepository
	StatsRepo       *repository.StatsRepository
}

func NewDashboardService(
	enrollmentRepo *repository.EnrollmentRepository,
	courseRepo *repository.CourseRepository,
	certificateRepo *repository.CertificateRepository,
	achievementRepo *repository.AchievementRepository,
	statsRepo *repository.StatsRepository,
) *DashboardService {
	return &DashboardService{
		EnrollmentRepo:  enrollmentRepo,
		CourseRepo:      courseRepo,
		CertificateRepo: certificateRepo,
		AchievementRepo: achievementRepo,
		StatsRepo:       statsRepo,
	}
}

// EnrolledCourse 学习中心的课程卡片：报名进度 + 课程摘要
type EnrolledCourse struct {
	CourseID      string                 `json:"courseId"`
	Title         string                 `json:"title"`
	Category      string                 `json:"category"`
	Level         string                 `json:"level"`
	Status        model.EnrollmentStatus `json:"status"`
	Progress      int                    `json:"progress"`
	CurrentLesson string                 `json:"currentLesson,omitempty"`
	NextLesson    string                 `json:"nextLesson,omitempty"`
}

type Dashboard struct {
	Stats        *model.UserStats    `json:"stats"`
	Courses      []EnrolledCourse    `json:"courses"`
	Certificates []model.Certificate `json:"certificates"`
	Achievements []model.Achievement `json:"achievements"`
}

// GetUserDashboard 学习中心聚合：统计、最近报名、证书、成就
func (s *DashboardService) GetUserDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	stats, err := s.StatsRepo.Get(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		stats = model.NewUserStats(userID)
	} else if err != nil {
		return nil, err
	}

	enrollments, err := s.EnrollmentRepo.FindByUser(ctx, userID, 20)
	if err != nil {
		return nil, err
	}

	courses := make([]EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		card := EnrolledCourse{
			CourseID:      e.CourseID,
			Status:        e.Status,
			Progress:      e.Progress.Progress,
			CurrentLesson: e.Progress.CurrentLesson,
			NextLesson:    e.Progress.NextLesson,
		}
		// 课程可能已被讲师下架，卡片保留进度但无摘要
		if course, err := s.CourseRepo.Get(ctx, e.CourseID); err == nil {
			card.Title = course.Title
			card.Category = course.Category
			card.Level = course.Level
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return nil, err
		}
		courses = append(courses, card)
	}

	certificates, err := s.CertificateRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	achievements, err := s.AchievementRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:        stats,
		Courses:      courses,
		Certificates: certificates,
		Achievements: achievements,
	}, nil
}

// InstructorDashboard 讲师侧概览
type InstructorDashboard struct {
	Stats   *model.UserStats  `json:"stats"`
	Courses []InstructorStats `json:"courses"`
}

type InstructorStats struct {
	CourseID  string `json:"courseId"`
	Title     string `json:"title"`
	Published bool   `json:"published"`
	Enrolled  int    `json:"enrolled"`
	Completed int    `json:"completed"`
}

func (s *DashboardService) GetInstructorDashboard(ctx context.Context, instructorID string) (*InstructorDashboard, error) {
	stats, err := s.StatsRepo.Get(ctx, instructorID)
	if errors.Is(err, docstore.ErrNotFound) {
		stats = model.NewUserStats(instructorID)
	} else if err != nil {
		return nil, err
	}

	courses, err := s.CourseRepo.List(ctx, repository.CourseFilter{InstructorID: instructorID})
	if err != nil {
		return nil, err
	}

	perCourse := make([]InstructorStats, 0, len(courses))
	for _, c := range courses {
		enrollments, err := s.EnrollmentRepo.FindByCourse(ctx, c.ID, 0)
		if err != nil {
			return nil, err
		}
		row := InstructorStats{CourseID: c.ID, Title: c.Title, Published: c.Published, Enrolled: len(enrollments)}
		for _, e := range enrollments {
			if e.Status == model.EnrollmentCompleted {
				row.Completed++
			}
		}
		perCourse = append(perCourse, row)
	}

	return &InstructorDashboard{Stats: stats, Courses: perCourse}, nil
}
