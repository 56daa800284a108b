package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/migrate"
)

func TestFlattenSeries(t *testing.T) {
	series := ebd.HistoricalSeries{
		"Tag2": {{Timestamp: "01/01/2024 00:00:00", Value: "20"}},
		"Tag1": {
			{Timestamp: "01/01/2024 00:00:00", Value: "10"},
			{Timestamp: "01/01/2024 00:01:00", Value: "11"},
		},
	}
	rows, err := flattenSeries(series)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Tag1", rows[0].tag)
	assert.Equal(t, "11", rows[1].value)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), rows[1].at)
	assert.Equal(t, "Tag2", rows[2].tag)
}

func TestFlattenSeries_BadTimestamp(t *testing.T) {
	_, err := flattenSeries(ebd.HistoricalSeries{"T": {{Timestamp: "yesterday", Value: "1"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ebd.ErrParse)
}

// 需要真实 PostgreSQL：T2M_TEST_DSN 未设置时跳过
func setupRepo(t *testing.T) *Repository {
	dsn := os.Getenv("T2M_TEST_DSN")
	if dsn == "" {
		t.Skip("T2M_TEST_DSN not set, skipping test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = migrate.Runner{}.Up(ctx, pool)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE tag_samples")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "TRUNCATE tag_samples")
		pool.Close()
	})
	return &Repository{Pool: pool}
}

func TestRepository_ArchiveIdempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	series := ebd.HistoricalSeries{
		"Temp": {
			{Timestamp: "01/01/2024 00:00:00", Value: "20"},
			{Timestamp: "01/01/2024 00:01:00", Value: "21"},
		},
	}

	n, err := repo.ArchiveSeries(ctx, "plant-1", series)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.ArchiveSeries(ctx, "plant-1", series)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repo.ListSamples(ctx, SampleQuery{Device: "plant-1", Tag: "Temp"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "20", got[0].Value)

	last, err := repo.LastSampleAt(ctx, "plant-1")
	require.NoError(t, err)
	assert.True(t, last.Equal(time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)))

	last, err = repo.LastSampleAt(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}
