package talk2m

import (
	"net/url"
	"strings"

	"github.com/taoyao-code/talk2m-gateway/internal/session"
)

// 表单字段名
const (
	FieldDeveloperID    = "t2mdeveloperid"
	FieldAccount        = "t2maccount"
	FieldUsername       = "t2musername"
	FieldPassword       = "t2mpassword"
	FieldSession        = "t2msession"
	FieldDeviceUsername = "t2mdeviceusername"
	FieldDevicePassword = "t2mdevicepassword"
	FieldASTParam       = "AST_Param"
)

// Param 单个表单字段
type Param struct {
	Key   string
	Value string
}

// Form 有序表单。url.Values 编码时会按键排序，这里保留追加顺序
type Form []Param

// Add 追加字段，不覆盖已有字段
func (f *Form) Add(key, value string) {
	*f = append(*f, Param{Key: key, Value: value})
}

// Get 返回第一个同名字段的值
func (f Form) Get(key string) (string, bool) {
	for _, p := range f {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Has 是否包含字段
func (f Form) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Keys 按顺序返回字段名
func (f Form) Keys() []string {
	keys := make([]string, len(f))
	for i, p := range f {
		keys[i] = p.Key
	}
	return keys
}

// Encode application/x-www-form-urlencoded 编码
func (f Form) Encode() string {
	var b strings.Builder
	for i, p := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// BuildForm 组装请求体：开发者 ID，然后账号凭据或会话令牌（二者互斥），最后是调用参数。
// 每次调用返回新的 Form，不在调用之间共享状态。
func BuildForm(creds AccountCredentials, auth session.Auth, extra ...Param) Form {
	form := make(Form, 0, 4+len(extra))
	form.Add(FieldDeveloperID, creds.DeveloperID)
	switch auth.Mode {
	case session.ModeStateful:
		form.Add(FieldSession, auth.Token)
	default:
		form.Add(FieldAccount, creds.AccountName)
		form.Add(FieldUsername, creds.Username)
		form.Add(FieldPassword, creds.Password)
	}
	form = append(form, extra...)
	return form
}
