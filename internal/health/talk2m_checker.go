package health

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/taoyao-code/talk2m-gateway/internal/session"
)

// BreakerReporter 出站熔断器状态，由 *talk2m.HTTPTransport 实现
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

// SessionReporter 会话状态，由 *talk2m.Client 实现
type SessionReporter interface {
	Mode() session.Mode
	HasSessionToken() bool
}

// Talk2MChecker Talk2M 上游检查：熔断器与会话模式，不发起网络调用
type Talk2MChecker struct {
	breaker      BreakerReporter
	sess         SessionReporter
	wantStateful bool
}

// NewTalk2MChecker wantStateful 为 true 时，未进入有状态会话视为降级
func NewTalk2MChecker(breaker BreakerReporter, sess SessionReporter, wantStateful bool) *Talk2MChecker {
	return &Talk2MChecker{breaker: breaker, sess: sess, wantStateful: wantStateful}
}

// Name 返回检查器名称
func (c *Talk2MChecker) Name() string {
	return "talk2m"
}

// Check 执行健康检查
func (c *Talk2MChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status := StatusHealthy
	message := "ok"
	details := map[string]interface{}{}

	if c.breaker != nil {
		state := c.breaker.BreakerState()
		details["circuit_breaker_state"] = state.String()
		switch state {
		case gobreaker.StateOpen:
			status = StatusDegraded
			message = "circuit breaker open"
		case gobreaker.StateHalfOpen:
			status = StatusDegraded
			message = "circuit breaker half-open"
		}
	}

	if c.sess != nil {
		mode := c.sess.Mode()
		details["session_mode"] = mode.String()
		details["has_token"] = c.sess.HasSessionToken()
		if c.wantStateful && mode != session.ModeStateful && status == StatusHealthy {
			status = StatusDegraded
			message = "stateful session not established"
		}
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
