package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/metrics"
	"github.com/taoyao-code/talk2m-gateway/internal/storage"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
	"github.com/taoyao-code/talk2m-gateway/internal/talk2m"
)

// 任务标签（poller_runs_total{task}）
const (
	TaskCatalog = "catalog"
	TaskLive    = "live"
	TaskHistory = "history"
)

// Account 账号级调用
type Account interface {
	ListDevices(ctx context.Context) ([]talk2m.Ewon, error)
}

// DeviceReader 单台设备的读取调用
type DeviceReader interface {
	LiveTags(ctx context.Context) (map[string]ebd.TagRecord, error)
	HistoricalRelative(ctx context.Context, window ebd.Window) (ebd.HistoricalSeries, error)
}

// DeviceFactory 由设备凭据构造读取器
type DeviceFactory func(creds talk2m.DeviceCredentials) (DeviceReader, error)

// ClientDevices 以 *talk2m.Client 构造设备读取器
func ClientDevices(c *talk2m.Client) DeviceFactory {
	return func(creds talk2m.DeviceCredentials) (DeviceReader, error) {
		d, err := c.Device(creds)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Stats 单轮同步统计
type Stats struct {
	Catalog   int // 写入目录的设备数
	Online    int // 目录中在线的设备数
	Snapshots int // 成功缓存实时快照的设备数
	Archived  int // 新归档的采样点数
	Failures  int
}

// Poller 周期同步器：刷新设备目录、缓存实时快照、归档历史采样
type Poller struct {
	cfg     cfgpkg.PollerConfig
	account Account
	devices DeviceFactory
	book    *cfgpkg.DeviceBook

	catalog storage.DeviceCatalog
	cache   storage.TagSnapshotStore
	archive storage.SampleArchive

	metrics *metrics.AppMetrics
	logger  *zap.Logger
	now     func() time.Time

	// 统计
	statsRuns int64
}

// Option 可选依赖
type Option func(*Poller)

// WithCatalog 设置设备目录，缺省时跳过目录同步
func WithCatalog(c storage.DeviceCatalog) Option { return func(p *Poller) { p.catalog = c } }

// WithCache 设置实时快照缓存
func WithCache(c storage.TagSnapshotStore) Option { return func(p *Poller) { p.cache = c } }

// WithArchive 设置历史采样归档
func WithArchive(a storage.SampleArchive) Option { return func(p *Poller) { p.archive = a } }

// WithMetrics 设置指标，nil 表示不上报
func WithMetrics(m *metrics.AppMetrics) Option { return func(p *Poller) { p.metrics = m } }

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// New 创建同步器；存储依赖均可缺省，缺省时跳过对应任务
func New(cfg cfgpkg.PollerConfig, account Account, devices DeviceFactory, book *cfgpkg.DeviceBook, opts ...Option) *Poller {
	p := &Poller{
		cfg:     cfg,
		account: account,
		devices: devices,
		book:    book,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.Interval <= 0 {
		p.cfg.Interval = 5 * time.Minute
	}
	return p
}

// Start 启动同步循环，启动后立即执行一轮，ctx 取消后返回
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("history_window", p.cfg.HistoryWindow),
		zap.Duration("cache_ttl", p.cfg.CacheTTL),
		zap.Strings("devices", p.targets()))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped", zap.Int64("runs", p.statsRuns))
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮同步。单台设备失败不影响其他设备
func (p *Poller) RunOnce(ctx context.Context) Stats {
	p.statsRuns++
	var st Stats

	if p.catalog != nil && p.account != nil {
		n, online, err := p.syncCatalog(ctx)
		p.metrics.ObservePoll(TaskCatalog, err)
		if err != nil {
			st.Failures++
			p.logger.Warn("catalog sync failed", zap.Error(err))
		}
		st.Catalog, st.Online = n, online
	}

	for _, name := range p.targets() {
		if ctx.Err() != nil {
			break
		}
		p.pollDevice(ctx, name, &st)
	}

	p.logger.Debug("poll run finished",
		zap.Int("catalog", st.Catalog),
		zap.Int("online", st.Online),
		zap.Int("snapshots", st.Snapshots),
		zap.Int("archived", st.Archived),
		zap.Int("failures", st.Failures))
	return st
}

func (p *Poller) syncCatalog(ctx context.Context) (int, int, error) {
	ewons, err := p.account.ListDevices(ctx)
	if err != nil {
		return 0, 0, err
	}
	online := 0
	for _, e := range ewons {
		if e.Online() {
			online++
		}
	}
	n, err := p.catalog.UpsertDevices(ctx, CatalogEntries(ewons), p.now())
	if err != nil {
		return n, 0, err
	}
	return n, online, nil
}

func (p *Poller) pollDevice(ctx context.Context, name string, st *Stats) {
	entry, ok := p.book.Lookup(name)
	if !ok {
		st.Failures++
		p.logger.Warn("device not in device book", zap.String("device", name))
		return
	}
	dev, err := p.devices(talk2m.DeviceCredentials{
		DeviceName: entry.Name,
		Username:   entry.Username,
		Password:   entry.Password,
	})
	if err != nil {
		st.Failures++
		p.logger.Warn("device credentials rejected", zap.String("device", name), zap.Error(err))
		return
	}

	if p.cache != nil {
		err := p.snapshot(ctx, name, dev)
		p.metrics.ObservePoll(TaskLive, err)
		if err != nil {
			st.Failures++
			p.logger.Warn("live snapshot failed", zap.String("device", name), zap.Error(err))
		} else {
			st.Snapshots++
		}
	}

	if p.archive != nil && p.cfg.HistoryWindow > 0 {
		n, err := p.archiveHistory(ctx, name, dev)
		p.metrics.ObservePoll(TaskHistory, err)
		if err != nil {
			st.Failures++
			p.logger.Warn("history archive failed", zap.String("device", name), zap.Error(err))
		}
		st.Archived += n
		p.metrics.AddArchived(n)
	}
}

func (p *Poller) snapshot(ctx context.Context, name string, dev DeviceReader) error {
	at := p.now()
	tags, err := dev.LiveTags(ctx)
	if err != nil {
		return err
	}
	return p.cache.SaveLiveTags(ctx, name, tags, at, p.cfg.CacheTTL)
}

func (p *Poller) archiveHistory(ctx context.Context, name string, dev DeviceReader) (int, error) {
	series, err := dev.HistoricalRelative(ctx, ebd.SinceDuration(p.cfg.HistoryWindow))
	if err != nil {
		return 0, err
	}
	n, err := p.archive.ArchiveSeries(ctx, name, series)
	if err != nil {
		return n, fmt.Errorf("archive %s: %w", name, err)
	}
	return n, nil
}

// targets 配置的设备列表；为空时取设备簿全部设备
func (p *Poller) targets() []string {
	if len(p.cfg.Devices) > 0 {
		return p.cfg.Devices
	}
	return p.book.Names()
}

// CatalogEntries 将 getewons 应答转换为目录记录
func CatalogEntries(ewons []talk2m.Ewon) []models.Device {
	out := make([]models.Device, 0, len(ewons))
	for _, e := range ewons {
		out = append(out, models.Device{
			Talk2MID:    e.ID,
			Name:        e.Name,
			EncodedName: e.EncodedName,
			Status:      e.Status,
			Description: e.Description,
			M2WebServer: e.M2WebServer,
		})
	}
	return out
}
