package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/altnbk/saas-landing-page/internal/api/handler"
	"github.com/altnbk/saas-landing-page/internal/api/middleware"
	"github.com/altnbk/saas-landing-page/internal/pkg/auth"
	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/internal/pkg/jwt"
	"github.com/altnbk/saas-landing-page/internal/pkg/metrics"
	"github.com/altnbk/saas-landing-page/internal/service"
)

// Deps 路由依赖
type Deps struct {
	Deployments service.DeploymentService
	Tokens      *jwt.Manager
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer // 为空时使用默认 registry
}

// Setup 设置路由
func Setup(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 指标
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 初始化Handler
	deploymentHandler := handler.NewDeploymentHandler(deps.Deployments)

	// API v1
	v1 := r.Group("/api/v1")
	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		// 部署管理
		groupDeployments := authed.Group("/deployments")
		{
			groupDeployments.POST("", deploymentHandler.Create)           // 创建部署(queued)
			groupDeployments.GET("", deploymentHandler.List)              // 本人的部署列表
			groupDeployments.GET("/:id", deploymentHandler.Get)           // 详情(含日志)
			groupDeployments.POST("/:id/run", deploymentHandler.Run)      // 触发部署, 幂等
			groupDeployments.GET("/:id/status", deploymentHandler.Status) // 单次复查构建状态
		}

		// 管理员
		groupAdmin := authed.Group("/admin")
		groupAdmin.Use(middleware.RequirePermission(auth.PermDeploymentCleanup))
		{
			groupAdmin.DELETE("/deployments/:id/resources", deploymentHandler.Cleanup) // 删除仓库与托管项目
		}
	}

	return r
}
