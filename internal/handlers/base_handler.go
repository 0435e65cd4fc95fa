package handlers

import (
	"github.com/brightpath-edu/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// BaseHandler carries the shared handler dependencies
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the request id from context
func (h *BaseHandler) LogRequest(c *gin.Context, message string, args ...interface{}) {
	logArgs := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if requestID, exists := c.Get("request_id"); exists {
		logArgs = append(logArgs, "request_id", requestID)
	}
	logArgs = append(logArgs, args...)

	h.logger.Info(message, logArgs...)
}

// LogError logs a handler-level error with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, args ...interface{}) {
	logArgs := []interface{}{
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	if requestID, exists := c.Get("request_id"); exists {
		logArgs = append(logArgs, "request_id", requestID)
	}
	logArgs = append(logArgs, args...)

	h.logger.Error(message, logArgs...)
}

// ErrorResponse is the standard error body for handler responses
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the standard success body for handler responses
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
