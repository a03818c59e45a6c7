package service

import (
	"context"
	"errors"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"
	"course_market_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// AchievementRule 声明式成就规则：阈值判定 + 至多一次授予。
// 规则彼此独立，求值顺序不敏感，新增规则无需改动协调器控制流。
type AchievementRule struct {
	ID    string
	Title string
	Icon  string
	XP    int
	Met   func(stats *model.UserStats) bool
}

func DefaultAchievementRules() []AchievementRule {
	return []AchievementRule{
		{
			ID:    "first_course",
			Title: "First Course Completed",
			Icon:  "medal-bronze",
			XP:    50,
			Met:   func(s *model.UserStats) bool { return s.CompletedCourses >= 1 },
		},
		{
			ID:    "five_courses",
			Title: "Course Marathoner",
			Icon:  "medal-gold",
			XP:    250,
			Met:   func(s *model.UserStats) bool { return s.CompletedCourses >= 5 },
		},
		{
			ID:    "first_project",
			Title: "Project Builder",
			Icon:  "wrench",
			XP:    100,
			Met:   func(s *model.UserStats) bool { return s.ProjectsCompleted >= 1 },
		},
		{
			ID:    "hackathon_debut",
			Title: "Hackathon Debut",
			Icon:  "rocket",
			XP:    100,
			Met:   func(s *model.UserStats) bool { return s.HackathonsJoined >= 1 },
		},
	}
}

// CompletionService 结课副作用协调器。每一步都是先查后写的幂等操作，
// 重复调用（如超时重试时首次其实已成功）不产生重复文档；
// 部分失败不回滚，等待下次调用补齐剩余步骤。
type CompletionService struct {
	CertificateRepo *repository.CertificateRepository
	StatsRepo       *repository.StatsRepository
	AchievementRepo *repository.AchievementRepository
	Rules           []AchievementRule
}

func NewCompletionService(
	certificateRepo *repository.CertificateRepository,
	statsRepo *repository.StatsRepository,
	achievementRepo *repository.AchievementRepository,
) *CompletionService {
	return &CompletionService{
		CertificateRepo: certificateRepo,
		StatsRepo:       statsRepo,
		AchievementRepo: achievementRepo,
		Rules:           DefaultAchievementRules(),
	}
}

// OnCourseCompleted 执行一次性的结课动作：签发证书、累加统计、评估成就。
// 调用方（进度编排器）保证只在 active→completed 跃迁时触发，
// 统计递增不做第二重幂等检查，这是文档化的单一幂等点。
func (s *CompletionService) OnCourseCompleted(ctx context.Context, userID string, course *model.Course) error {
	// 1. 证书：查缺创建，已存在视为成功
	cert := model.NewCertificate(userID, course)
	err := s.CertificateRepo.Create(ctx, cert)
	switch {
	case err == nil:
		monitoring.CertificatesIssued.Inc()
		if err := s.StatsRepo.Increment(ctx, userID, model.StatCertificates, 1); err != nil {
			return err
		}
	case errors.Is(err, docstore.ErrAlreadyExists):
		logger.Log.Debug("certificate already issued",
			zap.String("userId", userID), zap.String("courseId", course.ID))
	default:
		return err
	}

	// 2. 学员统计：原子递增
	if err := s.StatsRepo.Increment(ctx, userID, model.StatCompletedCourses, 1); err != nil {
		return err
	}
	hours := float64(course.TotalDuration()) / 60.0
	if hours > 0 {
		if err := s.StatsRepo.Increment(ctx, userID, model.StatHoursLearned, hours); err != nil {
			return err
		}
	}

	// 讲师侧聚合
	if course.InstructorID != "" {
		if err := s.StatsRepo.Increment(ctx, course.InstructorID, model.StatStudentsCompleted, 1); err != nil {
			return err
		}
	}

	// 含项目类课时的课程计入项目完成数
	if hasProjectLesson(course) {
		if err := s.StatsRepo.Increment(ctx, userID, model.StatProjectsCompleted, 1); err != nil {
			return err
		}
	}

	// 3. 成就：基于刚更新的统计重新读取后统一求值
	return s.EvaluateAchievements(ctx, userID)
}

// EvaluateAchievements 对着最新统计逐条评估规则，
// 每条命中且未授予的规则创建成就文档并递增成就计数
func (s *CompletionService) EvaluateAchievements(ctx context.Context, userID string) error {
	stats, err := s.StatsRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}

	for _, rule := range s.Rules {
		if !rule.Met(stats) {
			continue
		}
		exists, err := s.AchievementRepo.Exists(ctx, userID, rule.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		achievement := &model.Achievement{
			ID:     model.AchievementKey(userID, rule.ID),
			UserID: userID,
			RuleID: rule.ID,
			Title:  rule.Title,
			Icon:   rule.Icon,
			XP:     rule.XP,
		}
		err = s.AchievementRepo.Create(ctx, achievement)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			// 并发评估竞争，另一方已授予
			continue
		}
		if err != nil {
			return err
		}
		if err := s.StatsRepo.Increment(ctx, userID, model.StatAchievements, 1); err != nil {
			return err
		}
		logger.Log.Info("achievement unlocked",
			zap.String("userId", userID), zap.String("ruleId", rule.ID))
	}
	return nil
}

func hasProjectLesson(course *model.Course) bool {
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			if l.Type == model.LessonProject {
				return true
			}
		}
	}
	return false
}
