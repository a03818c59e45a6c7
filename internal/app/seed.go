package app

import (
	"context"
	"errors"

	"course_market_backend/internal/model"
	"course_market_backend/internal/repository"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

// SeedDemoData 写入演示讲师与示例课程，重复执行是幂等的。
// 固定 ID 让前端演示页面可以硬编码链接。
func SeedDemoData(
	ctx context.Context,
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	statsRepo *repository.StatsRepository,
) error {
	const instructorID = "demo-instructor"

	hashed, err := bcrypt.GenerateFromPassword([]byte("demo-pass-2024"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	instructor := &model.User{
		ID:           instructorID,
		Name:         "Demo Instructor",
		Email:        "instructor@example.com",
		PasswordHash: string(hashed),
		Role:         model.Instructor,
	}
	if err := userRepo.Create(ctx, instructor); err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return err
	}
	if err := statsRepo.EnsureExists(ctx, instructorID); err != nil {
		return err
	}

	courses := []*model.Course{
		{
			ID:             "demo-go-course",
			Title:          "Go 后端开发入门",
			Description:    "从零搭建一个带持久化与鉴权的 HTTP 服务",
			InstructorID:   instructorID,
			InstructorName: instructor.Name,
			Category:       "backend",
			Level:          "beginner",
			Price:          0,
			Skills:         []string{"go", "http", "sql"},
			Published:      true,
			Modules: []model.Module{
				{
					ID:    "m-basics",
					Title: "语言基础",
					Lessons: []model.Lesson{
						{ID: "l-syntax", Title: "语法速览", Type: model.LessonVideo, Duration: 25},
						{ID: "l-types", Title: "类型与接口", Type: model.LessonText, Duration: 15},
						{ID: "l-quiz-1", Title: "基础测验", Type: model.LessonQuiz, Duration: 10},
					},
				},
				{
					ID:    "m-server",
					Title: "构建服务",
					Lessons: []model.Lesson{
						{ID: "l-http", Title: "HTTP 服务", Type: model.LessonVideo, Duration: 30},
						{ID: "l-project", Title: "结课项目", Type: model.LessonProject, Duration: 60},
					},
				},
			},
		},
		{
			ID:             "demo-sql-course",
			Title:          "SQL 进阶",
			Description:    "索引、事务与查询调优",
			InstructorID:   instructorID,
			InstructorName: instructor.Name,
			Category:       "database",
			Level:          "intermediate",
			Price:          49.9,
			Skills:         []string{"sql", "mysql"},
			Published:      true,
			Modules: []model.Module{
				{
					ID:    "m-index",
					Title: "索引",
					Lessons: []model.Lesson{
						{ID: "l-btree", Title: "B+ 树与索引选择", Type: model.LessonVideo, Duration: 40},
						{ID: "l-explain", Title: "执行计划解读", Type: model.LessonExercise, Duration: 30},
					},
				},
			},
		},
	}

	for _, course := range courses {
		err := courseRepo.Create(ctx, course)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return err
		}
		logger.Log.Info("Seeded demo course: " + course.Title)
	}
	return nil
}
