package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/migrate"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/talk2m-gateway/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行内置迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		n, err := (migrate.Runner{}).Up(ctx, dbpool)
		if err != nil {
			log.Error("db migrate error", zap.Error(err))
			return dbpool, err
		}
		log.Info("db migrations applied", zap.Int("count", n))
	}
	return dbpool, nil
}

// OpenCatalogDB 设备目录使用的 GORM 连接（与 pgx 池共享同一 DSN）
func OpenCatalogDB(cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gormrepo.Open(cfg.DSN)
	if err != nil {
		log.Error("gorm open error", zap.Error(err))
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}
	return db, nil
}
