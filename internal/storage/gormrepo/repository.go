package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/talk2m-gateway/internal/storage"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
)

// Open 以 DSN 打开 GORM（postgres 驱动）
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

// Repository 基于 GORM 的设备目录实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New 返回一个使用给定 *gorm.DB 的设备目录
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ storage.DeviceCatalog = (*Repository)(nil)

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// UpsertDevices 以 talk2m_id 为冲突键整体覆盖目录字段
func (r *Repository) UpsertDevices(ctx context.Context, devices []models.Device, syncedAt time.Time) (int, error) {
	if len(devices) == 0 {
		return 0, nil
	}
	records := make([]models.Device, len(devices))
	for i, d := range devices {
		ts := syncedAt
		d.ID = 0
		d.LastSyncedAt = &ts
		records[i] = d
	}

	var written int64
	err := r.WithTx(ctx, func(tx *Repository) error {
		res := tx.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "talk2m_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"name":           gorm.Expr("excluded.name"),
					"encoded_name":   gorm.Expr("excluded.encoded_name"),
					"status":         gorm.Expr("excluded.status"),
					"description":    gorm.Expr("excluded.description"),
					"m2web_server":   gorm.Expr("excluded.m2web_server"),
					"last_synced_at": gorm.Expr("excluded.last_synced_at"),
					"updated_at":     gorm.Expr("NOW()"),
				}),
			}).
			Create(&records)
		written = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return int(written), nil
}

// ListDevices 按名称升序返回目录
func (r *Repository) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDevice 通过设备名查询
func (r *Repository) GetDevice(ctx context.Context, name string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}
