package pg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
)

// Repository 历史采样归档
type Repository struct {
	Pool *pgxpool.Pool
}

// ArchivedSample 已归档的采样点
type ArchivedSample struct {
	Device     string    `json:"device"`
	Tag        string    `json:"tag"`
	SampledAt  time.Time `json:"sampledAt"`
	Value      string    `json:"value"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// SampleQuery 归档查询条件，Tag 为空表示全部标签
type SampleQuery struct {
	Device string
	Tag    string
	Since  time.Time
	Until  time.Time
	Limit  int
}

type sampleRow struct {
	tag   string
	at    time.Time
	value string
}

// flattenSeries 按标签名、行顺序展开；任一时间戳无法解析则整体失败
func flattenSeries(series ebd.HistoricalSeries) ([]sampleRow, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []sampleRow
	for _, name := range names {
		for _, s := range series[name] {
			at, err := s.Time()
			if err != nil {
				return nil, fmt.Errorf("tag %s: %w", name, err)
			}
			rows = append(rows, sampleRow{tag: name, at: at, value: s.Value})
		}
	}
	return rows, nil
}

// ArchiveSeries 批量写入历史采样，(device, tag, sampled_at) 已存在的忽略。返回新写入条数
func (r *Repository) ArchiveSeries(ctx context.Context, device string, series ebd.HistoricalSeries) (int, error) {
	rows, err := flattenSeries(series)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	const q = `INSERT INTO tag_samples (device, tag, sampled_at, value)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (device, tag, sampled_at) DO NOTHING`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(q, device, row.tag, row.at, row.value)
	}

	br := r.Pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("archive %s: %w", device, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListSamples 查询归档采样，按时间升序
func (r *Repository) ListSamples(ctx context.Context, q SampleQuery) ([]ArchivedSample, error) {
	limit := q.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	until := q.Until
	if until.IsZero() {
		until = time.Now().Add(24 * time.Hour)
	}

	const sqlq = `SELECT device, tag, sampled_at, value, archived_at
                  FROM tag_samples
                  WHERE device = $1
                    AND ($2 = '' OR tag = $2)
                    AND sampled_at >= $3 AND sampled_at < $4
                  ORDER BY sampled_at ASC, tag ASC
                  LIMIT $5`
	rows, err := r.Pool.Query(ctx, sqlq, q.Device, q.Tag, q.Since, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSample
	for rows.Next() {
		var s ArchivedSample
		if err := rows.Scan(&s.Device, &s.Tag, &s.SampledAt, &s.Value, &s.ArchivedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LastSampleAt 设备最近一次归档采样时间，无数据返回零值
func (r *Repository) LastSampleAt(ctx context.Context, device string) (time.Time, error) {
	const q = `SELECT COALESCE(MAX(sampled_at), 'epoch'::timestamptz) FROM tag_samples WHERE device = $1`
	var at time.Time
	if err := r.Pool.QueryRow(ctx, q, device).Scan(&at); err != nil {
		return time.Time{}, err
	}
	if at.Unix() == 0 {
		return time.Time{}, nil
	}
	return at, nil
}
