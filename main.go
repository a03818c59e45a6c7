// @title Course Marketplace API
// @version 1.0
// @description 在线课程市场后端：课程目录、学习进度与结业认证。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"course_market_backend/internal/app"
	"course_market_backend/internal/config"
	"course_market_backend/pkg/configwatcher"
	"course_market_backend/pkg/logger"
)

func main() {
	// 命令行参数
	seedDemo := flag.Bool("seed-demo", false, "启动时写入演示讲师和示例课程")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.SeedDemo = *seedDemo

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 配置文件热更新
	go configwatcher.WatchConfig("configs/config.yaml", application.ReloadConfig)

	application.Run()
}
