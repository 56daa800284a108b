package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/api/middleware"
)

// RegisterRoutes 注册 /api 路由
func RegisterRoutes(r *gin.Engine, h *Handler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil || h.gw == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	api.Use(middleware.RequestTracing())
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 会话
	api.GET("/session", h.GetSession)
	api.POST("/session/login", h.Login)
	api.POST("/session/logout", h.Logout)

	// 账号
	api.GET("/account", h.GetAccount)

	// 设备
	api.GET("/devices", h.ListDevices)
	api.GET("/devices/:name", h.GetDevice)
	api.GET("/devices/:name/tags", h.GetTags)
	api.POST("/devices/:name/tags", h.UpdateTags)
	api.GET("/devices/:name/history", h.GetHistory)
	api.GET("/devices/:name/archive", h.GetArchive)

	logger.Info("api routes registered", zap.Int("endpoints", 10))
}
