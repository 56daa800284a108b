package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/talk2m-gateway/internal/config"
	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/session"
	"github.com/taoyao-code/talk2m-gateway/internal/storage/models"
	pgstorage "github.com/taoyao-code/talk2m-gateway/internal/storage/pg"
	redisstore "github.com/taoyao-code/talk2m-gateway/internal/storage/redis"
	"github.com/taoyao-code/talk2m-gateway/internal/talk2m"
)

// Gateway 账号级 Talk2M 调用，由 *talk2m.Client 实现
type Gateway interface {
	Mode() session.Mode
	HasSessionToken() bool
	StartSession(ctx context.Context) (*talk2m.LoginResult, error)
	EndSession(ctx context.Context) error
	AccountInfo(ctx context.Context) (*talk2m.AccountInfo, error)
	ListDevices(ctx context.Context) ([]talk2m.Ewon, error)
	GetDevice(ctx context.Context, name string) (*talk2m.Ewon, error)
}

// DeviceOps 单台设备调用，由 *talk2m.Device 实现
type DeviceOps interface {
	LiveTags(ctx context.Context) (map[string]ebd.TagRecord, error)
	UpdateTags(ctx context.Context, tags ...talk2m.TagUpdate) (map[string]ebd.TagRecord, error)
	HistoricalRelative(ctx context.Context, window ebd.Window) (ebd.HistoricalSeries, error)
}

// DeviceOpener 由设备凭据构造设备调用
type DeviceOpener func(creds talk2m.DeviceCredentials) (DeviceOps, error)

// ClientDevices 以 *talk2m.Client 构造设备调用
func ClientDevices(c *talk2m.Client) DeviceOpener {
	return func(creds talk2m.DeviceCredentials) (DeviceOps, error) {
		d, err := c.Device(creds)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// SnapshotReader 实时标签缓存读取
type SnapshotReader interface {
	LoadLiveTags(ctx context.Context, device string) (*redisstore.TagSnapshot, bool, error)
}

// SampleReader 历史归档读取
type SampleReader interface {
	ListSamples(ctx context.Context, q pgstorage.SampleQuery) ([]pgstorage.ArchivedSample, error)
}

// CatalogReader 设备目录读取
type CatalogReader interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// Deps Handler 依赖；存储类依赖可为空，为空时相应接口返回 503
type Deps struct {
	Gateway   Gateway
	Devices   DeviceOpener
	Book      *cfgpkg.DeviceBook
	Snapshots SnapshotReader
	Samples   SampleReader
	Catalog   CatalogReader
	Logger    *zap.Logger
}

// Handler Talk2M 网关 API 处理器
type Handler struct {
	gw        Gateway
	devices   DeviceOpener
	book      *cfgpkg.DeviceBook
	snapshots SnapshotReader
	samples   SampleReader
	catalog   CatalogReader
	logger    *zap.Logger
}

// NewHandler 创建API处理器
func NewHandler(d Deps) *Handler {
	h := &Handler{
		gw:        d.Gateway,
		devices:   d.Devices,
		book:      d.Book,
		snapshots: d.Snapshots,
		samples:   d.Samples,
		catalog:   d.Catalog,
		logger:    d.Logger,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// SessionStatus 会话状态
type SessionStatus struct {
	Mode     string `json:"mode"`
	HasToken bool   `json:"hasToken"`
	Message  string `json:"message,omitempty"`
}

func (h *Handler) sessionStatus(msg string) SessionStatus {
	return SessionStatus{Mode: h.gw.Mode().String(), HasToken: h.gw.HasSessionToken(), Message: msg}
}

// GetSession 查询会话状态
// @Summary 查询会话状态
// @Description 返回当前认证模式（stateless/stateful）及是否持有会话令牌
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SessionStatus
// @Router /api/session [get]
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionStatus(""))
}

// Login 登录并切换为有状态会话
// @Summary 登录
// @Description 调用 login 获取 t2msession 并切换为有状态模式
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SessionStatus
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/session/login [post]
func (h *Handler) Login(c *gin.Context) {
	res, err := h.gw.StartSession(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("talk2m session started via api", zap.String("request_id", c.GetString(middleware.RequestIDKey)))
	c.JSON(http.StatusOK, h.sessionStatus(res.Message))
}

// Logout 注销并回到无状态模式
// @Summary 注销
// @Description 调用 logout 并清除本地会话令牌；远端注销失败时本地仍会清除
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SessionStatus
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/session/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.gw.EndSession(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionStatus(""))
}

// GetAccount 查询账号信息
// @Summary 账号信息
// @Tags 账号
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} ErrorResponse
// @Router /api/account [get]
func (h *Handler) GetAccount(c *gin.Context) {
	info, err := h.gw.AccountInfo(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": info})
}

// ListDevices 查询设备列表
// @Summary 设备列表
// @Description 默认实时调用 getewons；source=catalog 时读取本地设备目录
// @Tags 设备
// @Produce json
// @Security ApiKeyAuth
// @Param source query string false "live(默认) 或 catalog"
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/devices [get]
func (h *Handler) ListDevices(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("source") == "catalog" {
		if h.catalog == nil {
			h.respondError(c, fmt.Errorf("%w: device catalog", ErrUnavailable))
			return
		}
		list, err := h.catalog.ListDevices(ctx)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"source": "catalog", "devices": list})
		return
	}

	list, err := h.gw.ListDevices(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "live", "devices": list})
}

// GetDevice 查询单台设备
// @Summary 设备详情
// @Tags 设备
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "设备名"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/devices/{name} [get]
func (h *Handler) GetDevice(c *gin.Context) {
	dev, err := h.gw.GetDevice(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": dev})
}

// TagsResponse 标签应答
type TagsResponse struct {
	Device    string                   `json:"device"`
	Source    string                   `json:"source"`
	UpdatedAt *time.Time               `json:"updatedAt,omitempty"`
	Tags      map[string]ebd.TagRecord `json:"tags"`
}

// GetTags 读取实时标签
// @Summary 实时标签
// @Description 通过 ParamForm($dtIV$ftT) 读取全部实时标签；cached=true 时读取 Redis 快照
// @Tags 设备
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "设备名"
// @Param cached query bool false "读取缓存快照"
// @Success 200 {object} TagsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/devices/{name}/tags [get]
func (h *Handler) GetTags(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	if cached, _ := strconv.ParseBool(c.Query("cached")); cached {
		if h.snapshots == nil {
			h.respondError(c, fmt.Errorf("%w: tag cache", ErrUnavailable))
			return
		}
		snap, ok, err := h.snapshots.LoadLiveTags(ctx, name)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if !ok {
			h.respondError(c, fmt.Errorf("%w: no cached snapshot for %s", ErrUnknownDevice, name))
			return
		}
		c.JSON(http.StatusOK, TagsResponse{Device: name, Source: "cache", UpdatedAt: &snap.UpdatedAt, Tags: snap.Tags})
		return
	}

	dev, err := h.openDevice(name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	tags, err := dev.LiveTags(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TagsResponse{Device: name, Source: "live", Tags: tags})
}

// UpdateTagsRequest 写标签请求
type UpdateTagsRequest struct {
	Tags []talk2m.TagUpdate `json:"tags"`
}

// UpdateTags 写入标签
// @Summary 写入标签
// @Description 通过 UpdateTagForm 写入一个或多个标签
// @Tags 设备
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "设备名"
// @Param request body UpdateTagsRequest true "标签列表"
// @Success 200 {object} TagsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/devices/{name}/tags [post]
func (h *Handler) UpdateTags(c *gin.Context) {
	name := c.Param("name")
	var req UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", talk2m.ErrInvalidArgument, err))
		return
	}
	dev, err := h.openDevice(name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ack, err := dev.UpdateTags(c.Request.Context(), req.Tags...)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("tags written",
		zap.String("device", name),
		zap.Int("count", len(req.Tags)),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)))
	c.JSON(http.StatusOK, TagsResponse{Device: name, Source: "live", Tags: ack})
}

// HistoryResponse 历史数据应答
type HistoryResponse struct {
	Device   string               `json:"device"`
	Selector string               `json:"selector"`
	Series   ebd.HistoricalSeries `json:"series"`
}

// GetHistory 读取相对时间窗口内的历史数据
// @Summary 历史数据
// @Description 通过 ParamForm($dtHT$ftT$st_..$et_..) 读取历史数据；end 缺省为当前时刻
// @Tags 设备
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "设备名"
// @Param start query int false "起点偏移"
// @Param startUnit query string false "s|m|h|d，默认 m"
// @Param end query int false "终点偏移"
// @Param endUnit query string false "s|m|h|d，默认 s"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/devices/{name}/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	name := c.Param("name")
	window, err := windowFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	selector, err := window.Selector()
	if err != nil {
		h.respondError(c, err)
		return
	}
	dev, err := h.openDevice(name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	series, err := dev.HistoricalRelative(c.Request.Context(), window)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Device: name, Selector: selector, Series: series})
}

// GetArchive 查询已归档的历史采样
// @Summary 归档采样
// @Tags 设备
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "设备名"
// @Param tag query string false "标签名"
// @Param since query string false "RFC3339，默认 24 小时前"
// @Param limit query int false "默认 1000"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/devices/{name}/archive [get]
func (h *Handler) GetArchive(c *gin.Context) {
	if h.samples == nil {
		h.respondError(c, fmt.Errorf("%w: history archive", ErrUnavailable))
		return
	}
	q := pgstorage.SampleQuery{
		Device: c.Param("name"),
		Tag:    c.Query("tag"),
		Since:  time.Now().Add(-24 * time.Hour),
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: since: %v", talk2m.ErrInvalidArgument, err))
			return
		}
		q.Since = since
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			h.respondError(c, fmt.Errorf("%w: limit %q", talk2m.ErrInvalidArgument, v))
			return
		}
		q.Limit = limit
	}

	samples, err := h.samples.ListSamples(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": q.Device, "samples": samples})
}

// openDevice 从设备簿取凭据构造设备调用
func (h *Handler) openDevice(name string) (DeviceOps, error) {
	entry, ok := h.book.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return h.devices(talk2m.DeviceCredentials{
		DeviceName: entry.Name,
		Username:   entry.Username,
		Password:   entry.Password,
	})
}

// windowFromQuery start/startUnit/end/endUnit -> 历史窗口
func windowFromQuery(c *gin.Context) (ebd.Window, error) {
	var w ebd.Window
	start, err := offsetFromQuery(c, "start", "startUnit", ebd.Minutes)
	if err != nil {
		return w, err
	}
	end, err := offsetFromQuery(c, "end", "endUnit", ebd.Seconds)
	if err != nil {
		return w, err
	}
	w.Start, w.End = start, end
	return w, nil
}

func offsetFromQuery(c *gin.Context, valueKey, unitKey string, def ebd.Unit) (*ebd.Offset, error) {
	raw := c.Query(valueKey)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", talk2m.ErrInvalidArgument, valueKey, raw)
	}
	unit := def
	if u := c.Query(unitKey); u != "" {
		if unit, err = ebd.ParseUnit(u); err != nil {
			return nil, err
		}
	}
	return &ebd.Offset{Value: v, Unit: unit}, nil
}
