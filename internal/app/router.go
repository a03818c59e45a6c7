package app

import (
	"course_market_backend/docs"
	"course_market_backend/internal/config"
	"course_market_backend/internal/middleware"
	"course_market_backend/internal/model"
	"course_market_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 证书核验是对外分享链接，游客可访问
		public.GET("/certificates/verify/:code", c.certificate.VerifyCertificate)

		// 目录与详情允许游客浏览；登录用户的详情视图带报名上下文
		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:id", middleware.OptionalAuthMiddleware(cfg), c.course.GetCourse)

		public.GET("/achievements/rules", c.achievement.ListRules)
	}

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/profile", c.auth.UpdateProfile)
		authGroup.GET("/dashboard", c.dashboard.GetDashboard)

		// 学习路径
		learning := authGroup.Group("/learning/courses/:id")
		{
			learning.POST("/enroll", c.learning.Enroll)
			learning.POST("/lessons/:lessonId/complete", c.learning.CompleteLesson)
			learning.GET("/status", c.learning.GetEnrollmentStatus)
			learning.GET("/progress", c.learning.GetCourseProgress)
			learning.GET("/access", c.learning.CheckAccess)
		}

		authGroup.GET("/certificates", c.certificate.ListCertificates)
		authGroup.GET("/certificates/courses/:courseId", c.certificate.GetCourseCertificate)
		authGroup.GET("/achievements", c.achievement.ListAchievements)

		// 讲师接口
		instructor := authGroup.Group("")
		instructor.Use(middleware.RoleMiddleware(model.Instructor))
		{
			instructor.POST("/courses", c.course.CreateCourse)
			instructor.PUT("/courses/:id", c.course.UpdateCourse)
			instructor.PUT("/courses/:id/publish", c.course.SetPublished)
			instructor.DELETE("/courses/:id", c.course.DeleteCourse)
			instructor.POST("/courses/:id/lessons/:lessonId/video", c.course.UploadLessonVideo)
			instructor.GET("/instructor/courses", c.course.ListMyCourses)
			instructor.GET("/instructor/dashboard", c.dashboard.GetInstructorDashboard)
		}
	}
}
