package handler

import (
	"fnordcredit/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.ServerConfig, logger zerolog.Logger) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())
	r.Use(RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))

	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.GET("", h.ListUsers)
			users.POST("", h.AddUser)
			users.GET("/:id", h.GetUser)
			users.DELETE("/:id", h.DeleteUser)
			users.PUT("/:id/name", h.RenameUser)
			users.PUT("/:id/token", h.UpdateToken)
			users.PUT("/:id/pin", h.UpdatePin)
			users.POST("/:id/pin/check", h.CheckPin)
			users.PUT("/:id/avatar", h.UpdateAvatar)

			// 余额与流水
			users.POST("/:id/credit", h.UpdateCredit)
			users.GET("/:id/transactions", h.GetTransactions)
			users.GET("/:id/transactions/qif", h.ExportQIF)
		}

		api.GET("/tokens/:token/user", h.GetUserByToken)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
