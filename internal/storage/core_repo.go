package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("storage: not found")

// DeviceCatalog 设备目录存储抽象。
// 约束：
// - 上层不直接写 SQL，统一通过本接口访问
// - 以设备名为业务键，重复同步幂等
type DeviceCatalog interface {
	// UpsertDevices 按 talk2m_id 插入或更新，返回写入条数
	UpsertDevices(ctx context.Context, devices []models.Device, syncedAt time.Time) (int, error)
	// ListDevices 按名称升序
	ListDevices(ctx context.Context) ([]models.Device, error)
	// GetDevice 不存在返回 ErrNotFound
	GetDevice(ctx context.Context, name string) (*models.Device, error)
}

// SampleArchive 历史采样归档抽象
type SampleArchive interface {
	// ArchiveSeries 写入一批历史序列，已存在的 (device, tag, sampled_at) 忽略
	ArchiveSeries(ctx context.Context, device string, series ebd.HistoricalSeries) (int, error)
}

// TagSnapshotStore 实时标签快照缓存抽象
type TagSnapshotStore interface {
	SaveLiveTags(ctx context.Context, device string, tags map[string]ebd.TagRecord, at time.Time, ttl time.Duration) error
}
