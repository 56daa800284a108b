package talk2m

import (
	"errors"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/session"
)

// 错误分类，使用 errors.Is 判断
var (
	// ErrConstruction 缺少必填凭据
	ErrConstruction = errors.New("talk2m: construction error")
	// ErrAuth 客户端未正确构造，或需要会话但尚未登录
	ErrAuth = errors.New("talk2m: auth error")
	// ErrInvalidArgument 参数非法（空令牌、空标签列表、非法时间窗口）
	ErrInvalidArgument = session.ErrInvalidArgument
	// ErrState 未设置令牌时切换为有状态模式
	ErrState = session.ErrState
	// ErrTransport 网络/HTTP 失败或 Talk2M 返回 success=false
	ErrTransport = errors.New("talk2m: transport error")
	// ErrParse EBD 响应结构不符
	ErrParse = ebd.ErrParse
)

// APIError Talk2M JSON 错误应答
type APIError struct {
	Route   string
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	return "talk2m " + e.Route + ": " + msg
}

// Unwrap 使 errors.Is(err, ErrTransport) 成立
func (e *APIError) Unwrap() error {
	return ErrTransport
}
