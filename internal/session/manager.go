// Package session Talk2M 会话状态机：决定每次调用携带账号凭据还是会话令牌
package session

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidArgument 会话令牌为空
	ErrInvalidArgument = errors.New("session: invalid argument")
	// ErrState 未设置令牌时切换为有状态模式
	ErrState = errors.New("session: state error")
)

// Mode 会话模式
type Mode int

const (
	ModeStateless Mode = iota // 每次调用发送完整账号凭据
	ModeStateful              // 每次调用发送 t2msession 令牌
)

func (m Mode) String() string {
	switch m {
	case ModeStateless:
		return "stateless"
	case ModeStateful:
		return "stateful"
	default:
		return "unknown"
	}
}

// Auth 某一时刻的认证快照。Mode 为 ModeStateful 时 Token 必不为空
type Auth struct {
	Mode  Mode
	Token string
}

// Stateful 是否携带会话令牌
func (a Auth) Stateful() bool {
	return a.Mode == ModeStateful
}

// Manager 会话状态机，初始为无状态模式；读写均加锁，可被并发调用共享
type Manager struct {
	mu    sync.RWMutex
	mode  Mode
	token string

	onChange func(Mode)
}

func New() *Manager {
	return &Manager{mode: ModeStateless}
}

// OnChange 注册模式变化回调（用于指标）
func (m *Manager) OnChange(fn func(Mode)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// UpdateToken 保存会话令牌并自动切换为有状态模式
func (m *Manager) UpdateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty session token", ErrInvalidArgument)
	}
	m.mu.Lock()
	m.token = token
	fn := m.setModeLocked(ModeStateful)
	m.mu.Unlock()
	if fn != nil {
		fn(ModeStateful)
	}
	return nil
}

// SetStateful 切换模式；从未设置令牌时不允许切换为有状态
func (m *Manager) SetStateful(stateful bool) error {
	m.mu.Lock()
	if stateful && m.token == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: no session token, login first", ErrState)
	}
	mode := ModeStateless
	if stateful {
		mode = ModeStateful
	}
	fn := m.setModeLocked(mode)
	m.mu.Unlock()
	if fn != nil {
		fn(mode)
	}
	return nil
}

// Clear 丢弃令牌并回到无状态模式
func (m *Manager) Clear() {
	m.mu.Lock()
	m.token = ""
	fn := m.setModeLocked(ModeStateless)
	m.mu.Unlock()
	if fn != nil {
		fn(ModeStateless)
	}
}

// Snapshot 返回当前认证快照
func (m *Manager) Snapshot() Auth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.mode == ModeStateful {
		return Auth{Mode: ModeStateful, Token: m.token}
	}
	return Auth{Mode: ModeStateless}
}

// Mode 当前模式
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// HasToken 是否持有令牌（不论当前模式）
func (m *Manager) HasToken() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != ""
}

// setModeLocked 调用方持有写锁；模式变化时返回待执行的回调
func (m *Manager) setModeLocked(mode Mode) func(Mode) {
	if m.mode == mode {
		return nil
	}
	m.mode = mode
	return m.onChange
}
