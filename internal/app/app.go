package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_market_backend/internal/config"
	"course_market_backend/internal/controller"
	"course_market_backend/internal/repository"
	"course_market_backend/internal/service"
	"course_market_backend/pkg/database"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"
	"course_market_backend/pkg/monitoring"
	"course_market_backend/pkg/security"
	"course_market_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Store    docstore.Store
	services *services
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	certificate *repository.CertificateRepository
	stats       *repository.StatsRepository
	achievement *repository.AchievementRepository
}

type services struct {
	auth        *service.AuthService
	user        *service.UserService
	storage     *service.StorageService
	course      *service.CourseService
	completion  *service.CompletionService
	progress    *service.ProgressService
	certificate *service.CertificateService
	dashboard   *service.DashboardService
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	learning    *controller.LearningController
	certificate *controller.CertificateController
	achievement *controller.AchievementController
	dashboard   *controller.DashboardController
	health      *controller.HealthController
}

func (a *App) initRepositories(store docstore.Store) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(store),
		course:      repository.NewCourseRepository(store),
		enrollment:  repository.NewEnrollmentRepository(store),
		certificate: repository.NewCertificateRepository(store),
		stats:       repository.NewStatsRepository(store),
		achievement: repository.NewAchievementRepository(store),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, store docstore.Store) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, repos.stats, cfg)
	s.user = service.NewUserService(repos.user, repos.stats)
	s.course = service.NewCourseService(repos.course, repos.enrollment, repos.stats, s.storage, cfg)
	s.completion = service.NewCompletionService(repos.certificate, repos.stats, repos.achievement)
	s.progress = service.NewProgressService(store, repos.course, repos.enrollment, repos.certificate, repos.stats, s.completion)
	s.certificate = service.NewCertificateService(repos.certificate)
	s.dashboard = service.NewDashboardService(repos.enrollment, repos.course, repos.certificate, repos.achievement, repos.stats)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth, s.user),
		course:      controller.NewCourseController(s.course, s.auth),
		learning:    controller.NewLearningController(s.progress),
		certificate: controller.NewCertificateController(s.certificate),
		achievement: controller.NewAchievementController(repos.achievement, s.completion.Rules),
		dashboard:   controller.NewDashboardController(s.dashboard),
		health:      controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// initStore 按配置选择文档存储后端。memory 模式不建 MySQL/Redis 连接，
// 适合本地调试和演示。
func (a *App) initStore(cfg *config.Config) docstore.Store {
	if cfg.Docstore.Driver == "memory" {
		logger.Log.Info("Using in-memory document store")
		return docstore.NewMemStore()
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}
	a.DB = db

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	a.Redis = rdb

	store, err := docstore.NewMySQLStore(db, rdb, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize document store", zap.Error(err))
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	return store
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	app := &App{Config: cfg}

	store := app.initStore(cfg)
	app.Store = store

	repos := app.initRepositories(store)
	services := app.initServices(repos, cfg, store)
	app.services = services
	controllers := app.initControllers(services, repos, app.DB)

	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("course-marketplace", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	if cfg.SeedDemo {
		if err := SeedDemoData(context.Background(), repos.user, repos.course, repos.stats); err != nil {
			logger.Log.Error("Failed to seed demo data", zap.Error(err))
		}
	}

	return app
}

// ReloadConfig 配置热更新：原地覆盖配置结构，鉴权等持有指针的
// 组件下次读取即生效。运行时标志不受配置文件影响。
func (a *App) ReloadConfig(newCfg *config.Config) {
	newCfg.SeedDemo = a.Config.SeedDemo
	*a.Config = *newCfg
	logger.Log.Info("Config reloaded")
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 停掉变更订阅，避免关闭期间的缓存失效回调
	if a.services != nil && a.services.progress != nil {
		a.services.progress.Close()
	}
	if closer, ok := a.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Println("store close:", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
