package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/talk2m-gateway/internal/api/middleware"
	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
	"github.com/taoyao-code/talk2m-gateway/internal/storage"
	"github.com/taoyao-code/talk2m-gateway/internal/talk2m"
)

var (
	// ErrUnknownDevice 设备不在设备簿中
	ErrUnknownDevice = errors.New("unknown device")
	// ErrUnavailable 依赖的存储未启用
	ErrUnavailable = errors.New("backend not configured")
)

// ErrorResponse 错误应答
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// classifyError 错误分类 -> HTTP 状态码与错误标识
func classifyError(err error) (int, string) {
	var apiErr *talk2m.APIError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrUnknownDevice), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound:
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, talk2m.ErrInvalidArgument), errors.Is(err, ebd.ErrInvalidWindow):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, talk2m.ErrState):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, talk2m.ErrAuth):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, talk2m.ErrParse):
		return http.StatusBadGateway, "upstream_parse"
	case errors.Is(err, talk2m.ErrTransport):
		return http.StatusBadGateway, "upstream"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, kind := classifyError(err)
	requestID := c.GetString(middleware.RequestIDKey)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("api request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, ErrorResponse{
		Error:     kind,
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	})
}
