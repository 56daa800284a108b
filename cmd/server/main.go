package main

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/logging"
)

// @title Talk2M Gateway API
// @version 1.0
// @description Talk2M (eWON) 云端网关：会话管理、实时标签、历史数据与归档查询
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// 1) 加载配置（T2M_CONFIG 指定文件，T2M_* 环境变量覆盖）
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Fatal("talk2m gateway exited", zap.Error(err))
	}
}
