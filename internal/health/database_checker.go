package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseChecker 数据库健康检查器（历史归档库）
type DatabaseChecker struct {
	pool *pgxpool.Pool
}

// NewDatabaseChecker 创建数据库健康检查器
func NewDatabaseChecker(pool *pgxpool.Pool) *DatabaseChecker {
	return &DatabaseChecker{pool: pool}
}

// Name 返回检查器名称
func (c *DatabaseChecker) Name() string {
	return "database"
}

// Check 执行健康检查
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	if err := c.pool.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.pool.Stat()
	utilization := poolUtilization(stats.AcquiredConns(), stats.MaxConns())

	return CheckResult{
		Status:  utilizationStatus(utilization),
		Message: utilizationMessage(utilization),
		Details: map[string]interface{}{
			"total_conns":    stats.TotalConns(),
			"idle_conns":     stats.IdleConns(),
			"acquired_conns": stats.AcquiredConns(),
			"max_conns":      stats.MaxConns(),
			"utilization":    fmt.Sprintf("%.1f%%", utilization*100),
		},
		Latency: time.Since(start),
	}
}

func poolUtilization(acquired, max int32) float64 {
	if max <= 0 {
		return 0
	}
	return float64(acquired) / float64(max)
}

// utilizationStatus >90% 降级，满载不健康
func utilizationStatus(u float64) Status {
	switch {
	case u >= 1.0:
		return StatusUnhealthy
	case u > 0.9:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func utilizationMessage(u float64) string {
	switch {
	case u >= 1.0:
		return "connection pool exhausted"
	case u > 0.9:
		return "connection pool near limit"
	default:
		return "ok"
	}
}
