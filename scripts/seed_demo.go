// 手动写入演示数据脚本
//
// 该功能也可通过主程序的 -seed-demo 启动参数触发。
// 此脚本用于不启动 HTTP 服务的场景，例如 CI 环境初始化或演示库重建。
//
// 用法: go run scripts/seed_demo.go

package main

import (
	"context"
	"log"

	"course_market_backend/internal/app"
	"course_market_backend/internal/config"
	"course_market_backend/internal/repository"
	"course_market_backend/pkg/database"
	"course_market_backend/pkg/docstore"
	"course_market_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	var store docstore.Store
	if cfg.Docstore.Driver == "memory" {
		log.Fatal("memory 文档存储是进程内的，种子数据请改用主程序的 -seed-demo 参数")
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	store, err = docstore.NewMySQLStore(db, rdb, logger.Log)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}

	err = app.SeedDemoData(
		context.Background(),
		repository.NewUserRepository(store),
		repository.NewCourseRepository(store),
		repository.NewStatsRepository(store),
	)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	log.Println("演示数据写入完成")
}
