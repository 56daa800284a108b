package talk2m

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// reply Talk2M JSON 应答的公共字段
type reply struct {
	Success *bool  `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginResult login 应答
type LoginResult struct {
	Message      string `json:"message,omitempty"`
	SessionToken string `json:"t2msession,omitempty"`
}

// Pool 账号下的设备池
type Pool struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AccountInfo getaccountinfo 应答
type AccountInfo struct {
	AccountReference string   `json:"accountReference"`
	AccountName      string   `json:"accountName"`
	Company          string   `json:"company"`
	AccountType      string   `json:"accountType"`
	CustomAttributes []string `json:"customAttributes"`
	Pools            []Pool   `json:"pools"`
}

// LanDevice eWON 下挂的局域网设备
type LanDevice struct {
	Name        string `json:"name"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
	Description string `json:"description"`
}

// Ewon 账号绑定的远程设备
type Ewon struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	EncodedName      string      `json:"encodedName"`
	Status           string      `json:"status"`
	Description      string      `json:"description"`
	CustomAttributes []string    `json:"customAttributes"`
	M2WebServer      string      `json:"m2webServer"`
	LanDevices       []LanDevice `json:"lanDevices"`
	EwonServices     []string    `json:"ewonServices"`
}

// Online 设备当前是否在线
func (e Ewon) Online() bool {
	return e.Status == "online"
}

// decodeReply 解析 JSON 应答；success=false 转为 *APIError
func decodeReply(route, body string, out any) error {
	var r reply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return fmt.Errorf("%w: %s: decode reply: %v", ErrTransport, route, err)
	}
	if r.Success != nil && !*r.Success {
		return &APIError{Route: route, Status: http.StatusOK, Code: r.Code, Message: r.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %s: decode reply: %v", ErrTransport, route, err)
	}
	return nil
}

// decodeAPIError 非 2xx 应答。应答体不是 JSON 时保留原文
func decodeAPIError(route string, status int, raw []byte) error {
	apiErr := &APIError{Route: route, Status: status}
	var r reply
	if err := json.Unmarshal(raw, &r); err == nil && r.Message != "" {
		apiErr.Code = r.Code
		apiErr.Message = r.Message
		return apiErr
	}
	apiErr.Code = status
	apiErr.Message = fmt.Sprintf("http %d", status)
	if len(raw) > 0 && len(raw) <= 256 {
		apiErr.Message += ": " + string(raw)
	}
	return apiErr
}
