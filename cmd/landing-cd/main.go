package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/adapter/hosting"
	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/adapter/source"
	"github.com/altnbk/saas-landing-page/internal/api/router"
	"github.com/altnbk/saas-landing-page/internal/core"
	"github.com/altnbk/saas-landing-page/internal/core/deployment"
	"github.com/altnbk/saas-landing-page/internal/core/naming"
	"github.com/altnbk/saas-landing-page/internal/core/site"
	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/internal/pkg/database"
	"github.com/altnbk/saas-landing-page/internal/pkg/jwt"
	"github.com/altnbk/saas-landing-page/internal/pkg/logger"
	"github.com/altnbk/saas-landing-page/internal/pkg/metrics"
	"github.com/altnbk/saas-landing-page/internal/repository"
	"github.com/altnbk/saas-landing-page/internal/scheduler"
	"github.com/altnbk/saas-landing-page/internal/service"

	_ "github.com/altnbk/saas-landing-page/docs" // Swagger docs
)

// @title Landing CD API
// @version 1.0
// @description 落地页自动部署服务 API 文档
// @description 创建 GitHub 仓库、Cloudflare Pages 项目并跟踪构建状态

// @contact.name API Support
// @contact.email support@example.com

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

var (
	configFile = flag.String("config", "", "配置文件路径 (例如: -config=configs/config.yaml)")
	version    = flag.Bool("version", false, "显示版本信息")
)

const (
	appVersion = "1.0.0"
	appName    = "landing-cd"
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 显示版本信息
	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	// init config logger
	var cfg *config.Config
	{
		// 优先级: 命令行参数 > 环境变量 > 默认路径
		configPath := getConfigPath()

		// 加载配置
		c, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("加载配置失败: %v\n", err)
			fmt.Println("\n使用方式:")
			fmt.Println("  1. 命令行参数指定:")
			fmt.Println("     ./landing-cd -config=configs/config.yaml")
			fmt.Println("  2. 环境变量指定:")
			fmt.Println("     export CONFIG_FILE=configs/config.yaml")
			fmt.Println("     ./landing-cd")
			fmt.Println("  3. 使用默认配置:")
			fmt.Println("     ./landing-cd  (将使用 configs/config.yaml)")
			os.Exit(1)
		}
		cfg = c

		// 初始化日志
		if err := logger.Init(&cfg.Log); err != nil {
			fmt.Printf("初始化日志失败: %v\n", err)
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("Load config file: %s of %s", configPath, getConfigSource()))

		defer func() {
			_ = logger.Close()
		}()
	}

	logger.Info(fmt.Sprintf("服务 %s 启动中...", appName), zap.String("version", appVersion))

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer func() {
		_ = database.Close()
	}()

	logger.Info(fmt.Sprintf("数据库连接成功 %s:%v", cfg.Database.Host, cfg.Database.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.Database))

	// 外部平台
	sourceProvisioner, err := source.NewProvisioner(&cfg.Source)
	if err != nil {
		logger.Fatal("初始化代码仓库平台失败", zap.Error(err))
	}
	hostingProvisioner, err := hosting.NewProvisioner(&cfg.Hosting)
	if err != nil {
		logger.Fatal("初始化托管平台失败", zap.Error(err))
	}
	notifier, err := notification.NewNotifier(&cfg.Notification, logger.Named("notification"))
	if err != nil {
		logger.Fatal("初始化通知失败", zap.Error(err))
	}

	renderer, err := site.NewRenderer(cfg.Template.Dir)
	if err != nil {
		logger.Fatal("加载落地页模板失败", zap.Error(err))
	}
	logger.Info("落地页模板已加载", zap.String("template", renderer.Name()))

	// 初始化Core引擎（状态机）
	ledger := repository.NewDeploymentRepository(database.GetDB())
	workflowMetrics := metrics.Default()
	sm := deployment.NewStateMachine(deployment.Deps{
		Ledger:   ledger,
		Source:   sourceProvisioner,
		Hosting:  hostingProvisioner,
		Notifier: notifier,
		Namer:    naming.New(cfg.Core.Naming.Prefix, cfg.Core.Naming.MaxSlugLength),
		Renderer: renderer,
		Metrics:  workflowMetrics,
		Logger:   logger.Named("deployment"),
	}, deployment.Options{
		StepTimeout:     config.Duration(cfg.Core.StepTimeout, 60*time.Second),
		PollMaxAttempts: cfg.Core.Poll.MaxAttempts,
		PollInterval:    config.Duration(cfg.Core.Poll.Interval, 5*time.Second),
		AppURL:          cfg.Notification.AppURL,
		ReapBatchSize:   cfg.Core.ScanBatchSize,
	})
	coreEngine := core.NewCoreEngine(sm, ledger, cfg.Core.ScanBatchSize, cfg.Core.ScanConcurrency, logger.Named("core"))

	// 启动Core引擎
	scanInterval := config.Duration(cfg.Core.ScanInterval, 30*time.Second)
	coreEngine.Start(scanInterval)
	logger.Info("Core引擎启动成功", zap.Duration("scan_interval", scanInterval))

	// 初始化并启动定时任务调度器
	taskScheduler := scheduler.NewScheduler(coreEngine, logger.Log)
	if err := taskScheduler.Start(&cfg.Core); err != nil {
		logger.Warn("定时任务调度器启动失败", zap.Error(err))
	}

	// 设置路由
	r := router.Setup(cfg, router.Deps{
		Deployments: service.NewDeploymentService(ledger, sm, logger.Named("service")),
		Tokens:      jwt.NewManager(cfg.Auth.JWT),
		Metrics:     workflowMetrics,
	})

	// 创建HTTP服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info(fmt.Sprintf("%s 服务启动成功", cfg.Server.Name),
			zap.String("address", addr),
			zap.String("mode", cfg.Server.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务正在关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 先停止接收请求, 进行中的触发请求可以完成当前步骤
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭定时任务调度器
	taskScheduler.Stop()

	// 关闭Core引擎
	coreEngine.Stop()

	logger.Info("服务已关闭")
}

// getConfigPath 获取配置文件路径
// 优先级: 命令行参数 > 环境变量 > 默认路径
func getConfigPath() string {
	// 1. 命令行参数
	if *configFile != "" {
		return *configFile
	}

	// 2. 环境变量
	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		return envConfig
	}

	// 3. 默认路径
	return "configs/config.yaml"
}

// getConfigSource 获取配置来源说明
func getConfigSource() string {
	if *configFile != "" {
		return "命令行参数"
	}
	if os.Getenv("CONFIG_FILE") != "" {
		return "环境变量"
	}
	return "默认配置"
}
