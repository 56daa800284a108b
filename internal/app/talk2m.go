package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/metrics"
	"github.com/taoyao-code/talk2m-gateway/internal/talk2m"
)

// NewTalk2MTransport 根据配置创建出站 HTTP 传输（限流 + 熔断）
func NewTalk2MTransport(cfg cfgpkg.Talk2MConfig, log *zap.Logger, m *metrics.AppMetrics) *talk2m.HTTPTransport {
	return talk2m.NewHTTPTransport(talk2m.HTTPTransportConfig{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.RateLimit.PerSecond,
		Burst:      cfg.RateLimit.Burst,
		Breaker: talk2m.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		},
	}, nil, log, m)
}

// NewTalk2MClient 创建账号客户端
func NewTalk2MClient(cfg cfgpkg.Talk2MConfig, transport talk2m.Transport, log *zap.Logger, m *metrics.AppMetrics) (*talk2m.Client, error) {
	return talk2m.New(talk2m.AccountCredentials{
		AccountName: cfg.Account,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DeveloperID: cfg.DeveloperID,
	}, transport, talk2m.WithLogger(log), talk2m.WithMetrics(m))
}

// StartSessionIfConfigured 配置了 stateful 时登录并切换为有状态会话
func StartSessionIfConfigured(ctx context.Context, cfg cfgpkg.Talk2MConfig, client *talk2m.Client, log *zap.Logger) error {
	if !cfg.Stateful {
		log.Info("talk2m client in stateless mode")
		return nil
	}
	res, err := client.StartSession(ctx)
	if err != nil {
		return err
	}
	log.Info("talk2m session started", zap.String("message", res.Message))
	return nil
}
