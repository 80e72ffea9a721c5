package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"curriplan/config"
	"curriplan/internal/api/handler"
	"curriplan/internal/api/middleware"
	"curriplan/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时不限流；db 用于健康检查，可为 nil
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	editors := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleStaff)
	limited := middleware.RateLimit(limiter, cfg.CoTeaching.RateLimit, cfg.CoTeaching.RateWindow, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 开课计划模块
		plans := v1.Group("/plans")
		{
			plans.GET("", h.Plan.ListPlans)
			plans.GET("/:id", h.Plan.GetPlan)
			plans.GET("/:id/counterparts", h.Plan.ListCounterparts)
			plans.GET("/:id/co-teaching", h.CoTeaching.LookupGroup)
			plans.POST("", editors, h.Plan.CreatePlan)
			plans.PUT("/:id", editors, h.Plan.UpdatePlan)
			plans.DELETE("/:id", editors, h.Plan.DeletePlan)
		}

		// 合班模块（写操作限流）
		coTeaching := v1.Group("/co-teaching")
		{
			coTeaching.GET("/groups", h.CoTeaching.ListGroups)
			coTeaching.GET("/change-logs", h.CoTeaching.ListChangeLogs)
			coTeaching.POST("/merge", editors, limited, h.CoTeaching.Merge)
			coTeaching.POST("/unmerge", editors, limited, h.CoTeaching.Unmerge)
			coTeaching.POST("/split", editors, limited, h.CoTeaching.Split)
			coTeaching.POST("/merge-back", editors, limited, h.CoTeaching.MergeBack)
		}

		// 导出模块
		export := v1.Group("/export")
		{
			export.GET("/co-teaching", h.Export.ExportCoTeaching)
		}
	}

	return r
}
