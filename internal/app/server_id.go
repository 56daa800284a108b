package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateServerID 生成实例ID，写入日志便于多实例排查
// 优先使用环境变量 T2M_SERVER_ID，否则生成 talk2m-gateway-{hostname}-{uuid前8位}
func GenerateServerID() string {
	if serverID := os.Getenv("T2M_SERVER_ID"); serverID != "" {
		return serverID
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("talk2m-gateway-%s-%s", hostname, shortUUID)
}
