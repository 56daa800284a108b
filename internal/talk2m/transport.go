package talk2m

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/talk2m-gateway/internal/metrics"
)

// Transport 将表单 POST 到 baseURL/route，返回原始应答文本
type Transport interface {
	Post(ctx context.Context, route string, form Form) (string, error)
}

// BreakerConfig 熔断参数，FailureThreshold<=0 表示不启用
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// HTTPTransportConfig HTTP 传输配置
type HTTPTransportConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RatePerSec   float64 // <=0 不限流
	Burst        int
	Breaker      BreakerConfig
	MaxBodyBytes int64
}

// HTTPTransport 单次调用，不重试；限流与熔断只做保护
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	maxBody int64
	logger  *zap.Logger
	metrics *metrics.AppMetrics
}

// NewHTTPTransport 创建 HTTP 传输。client 为 nil 时使用 cfg.Timeout 构造
func NewHTTPTransport(cfg HTTPTransportConfig, client *http.Client, logger *zap.Logger, m *metrics.AppMetrics) *HTTPTransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 << 20
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &HTTPTransport{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		maxBody: cfg.MaxBodyBytes,
		logger:  logger,
		metrics: m,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	if cfg.Breaker.FailureThreshold > 0 {
		t.breaker = newBreaker("talk2m", cfg.Breaker, logger)
	}
	return t
}

func newBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	maxReq := cfg.MaxRequests
	if maxReq == 0 {
		maxReq = 1
	}
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxReq,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// 4xx 与 success=false 属于调用方问题，不计入熔断
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("talk2m circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// BreakerState 熔断器状态，未启用时返回 closed
func (t *HTTPTransport) BreakerState() gobreaker.State {
	if t.breaker == nil {
		return gobreaker.StateClosed
	}
	return t.breaker.State()
}

// Post 实现 Transport
func (t *HTTPTransport) Post(ctx context.Context, route string, form Form) (string, error) {
	start := time.Now()
	reqID := uuid.NewString()

	body, err := t.guarded(ctx, route, form)

	elapsed := time.Since(start)
	t.metrics.ObserveRequest(routeLabel(route), err, elapsed)
	if err != nil {
		t.logger.Warn("talk2m request failed",
			zap.String("request_id", reqID),
			zap.String("route", routeLabel(route)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", err
	}
	t.logger.Debug("talk2m request",
		zap.String("request_id", reqID),
		zap.String("route", routeLabel(route)),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", elapsed))
	return body, nil
}

func (t *HTTPTransport) guarded(ctx context.Context, route string, form Form) (string, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %v", ErrTransport, err)
		}
	}
	if t.breaker == nil {
		return t.do(ctx, route, form)
	}
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.do(ctx, route, form)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return "", err
	}
	return res.(string), nil
}

func (t *HTTPTransport) do(ctx context.Context, route string, form Form) (string, error) {
	endpoint := t.baseURL + "/" + route
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	// 截断的 EBD 可能恰好落在行尾，不能交给解析器
	if int64(len(raw)) > t.maxBody {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrTransport, t.maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeAPIError(route, resp.StatusCode, raw)
	}
	return string(raw), nil
}
