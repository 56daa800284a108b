// Package talk2m Talk2M M2Web API 客户端。
//
// 客户端在两种模式下工作：无状态模式每次调用携带完整账号凭据；有状态模式携带 login 返回的
// t2msession 令牌。模式由 internal/session 管理，UpdateSessionToken 会自动切换为有状态。
// 设备级操作（实时标签、写标签、历史数据）通过 Device 发起，应答为 EBD 文本，由 internal/ebd 解析。
package talk2m

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/metrics"
	"github.com/taoyao-code/talk2m-gateway/internal/session"
)

// Client Talk2M 账号客户端，可被多个 goroutine 共享
type Client struct {
	creds     AccountCredentials
	sess      *session.Manager
	transport Transport
	logger    *zap.Logger
	metrics   *metrics.AppMetrics
	valid     bool
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics 设置业务指标
func WithMetrics(m *metrics.AppMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New 校验凭据并创建客户端，初始为无状态模式。transport 为 nil 时使用默认 HTTP 传输
func New(creds AccountCredentials, transport Transport, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:  creds,
		sess:   session.New(),
		logger: zap.NewNop(),
		valid:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if transport == nil {
		transport = NewHTTPTransport(HTTPTransportConfig{}, nil, c.logger, c.metrics)
	}
	c.transport = transport

	c.metrics.SetStateful(false)
	c.sess.OnChange(func(mode session.Mode) {
		c.metrics.SetStateful(mode == session.ModeStateful)
		c.logger.Info("talk2m session mode changed", zap.String("mode", mode.String()))
	})
	return c, nil
}

// Mode 当前会话模式
func (c *Client) Mode() session.Mode {
	if c == nil || c.sess == nil {
		return session.ModeStateless
	}
	return c.sess.Mode()
}

// HasSessionToken 是否已持有会话令牌
func (c *Client) HasSessionToken() bool {
	if c == nil || c.sess == nil {
		return false
	}
	return c.sess.HasToken()
}

// Login 校验账号凭据。应答中的会话令牌通过返回值给出，本方法不改变会话模式
func (c *Client) Login(ctx context.Context) (*LoginResult, error) {
	body, err := c.call(ctx, RouteLogin)
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := decodeReply(RouteLogin, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout 结束服务端会话。不清除本地令牌也不切换模式，需要时调用 SetStateful(false)
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if c.sess.Mode() != session.ModeStateful {
		return fmt.Errorf("%w: logout requires a stateful session", ErrAuth)
	}
	body, err := c.call(ctx, RouteLogout)
	if err != nil {
		return err
	}
	return decodeReply(RouteLogout, body, nil)
}

// StartSession 登录并以返回的令牌进入有状态模式
func (c *Client) StartSession(ctx context.Context) (*LoginResult, error) {
	res, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	if res.SessionToken == "" {
		return nil, fmt.Errorf("%w: login reply carries no session token", ErrAuth)
	}
	if err := c.sess.UpdateToken(res.SessionToken); err != nil {
		return nil, err
	}
	return res, nil
}

// EndSession 注销并回到无状态模式。注销失败时本地令牌同样被丢弃
func (c *Client) EndSession(ctx context.Context) error {
	err := c.Logout(ctx)
	if c.ready() == nil {
		c.sess.Clear()
	}
	return err
}

// UpdateSessionToken 保存令牌并切换为有状态模式
func (c *Client) UpdateSessionToken(token string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.sess.UpdateToken(token)
}

// SetStateful 切换会话模式
func (c *Client) SetStateful(stateful bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.sess.SetStateful(stateful)
}

// AccountInfo 查询账号信息
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.call(ctx, RouteAccountInfo)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := decodeReply(RouteAccountInfo, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListDevices 列出账号绑定的 eWON
func (c *Client) ListDevices(ctx context.Context) ([]Ewon, error) {
	body, err := c.call(ctx, RouteListDevices)
	if err != nil {
		return nil, err
	}
	var res struct {
		Ewons []Ewon `json:"ewons"`
	}
	if err := decodeReply(RouteListDevices, body, &res); err != nil {
		return nil, err
	}
	return res.Ewons, nil
}

// GetDevice 查询单个 eWON
func (c *Client) GetDevice(ctx context.Context, name string) (*Ewon, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty device name", ErrInvalidArgument)
	}
	body, err := c.call(ctx, RouteGetDevice, Param{Key: "name", Value: name})
	if err != nil {
		return nil, err
	}
	var res struct {
		Ewon Ewon `json:"ewon"`
	}
	if err := decodeReply(RouteGetDevice, body, &res); err != nil {
		return nil, err
	}
	return &res.Ewon, nil
}

// Device 绑定设备凭据，返回设备级操作入口
func (c *Client) Device(creds DeviceCredentials) (*Device, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Device{creds: creds, client: c}, nil
}

func (c *Client) ready() error {
	if c == nil || !c.valid {
		return fmt.Errorf("%w: client was not constructed with valid credentials", ErrAuth)
	}
	return nil
}

// call 以当前会话快照组装表单并发送
func (c *Client) call(ctx context.Context, route string, extra ...Param) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	form := BuildForm(c.creds, c.sess.Snapshot(), extra...)
	return c.transport.Post(ctx, route, form)
}
