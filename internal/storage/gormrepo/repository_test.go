package gormrepo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/talk2m-gateway/internal/storage"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
)

// 需要真实 PostgreSQL：T2M_TEST_DSN 未设置时跳过
func setupRepo(t *testing.T) *Repository {
	dsn := os.Getenv("T2M_TEST_DSN")
	if dsn == "" {
		t.Skip("T2M_TEST_DSN not set, skipping test")
	}
	db, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Device{}))
	require.NoError(t, db.Exec("TRUNCATE devices").Error)
	t.Cleanup(func() {
		db.Exec("TRUNCATE devices")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func TestRepository_UpsertDevices(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	n, err := repo.UpsertDevices(ctx, []models.Device{
		{Talk2MID: 10, Name: "plant-b", Status: "offline"},
		{Talk2MID: 11, Name: "plant-a", Status: "online"},
	}, at)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 再次同步覆盖状态
	_, err = repo.UpsertDevices(ctx, []models.Device{{Talk2MID: 10, Name: "plant-b", Status: "online"}}, at.Add(time.Minute))
	require.NoError(t, err)

	list, err := repo.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "plant-a", list[0].Name)
	assert.Equal(t, "plant-b", list[1].Name)
	assert.True(t, list[1].Online())
	require.NotNil(t, list[1].LastSyncedAt)
	assert.True(t, list[1].LastSyncedAt.Equal(at.Add(time.Minute)))
}

func TestRepository_GetDeviceNotFound(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.GetDevice(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_UpsertEmpty(t *testing.T) {
	repo := &Repository{}
	n, err := repo.UpsertDevices(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
