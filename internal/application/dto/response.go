// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
)

// APIResponse wraps every JSON response of the service.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO is the machine-readable error surfaced to API callers.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse builds the success envelope around data.
func SuccessResponse(data interface{}, traceID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse builds the error envelope. Classified errors surface their
// own code and message; anything else collapses to a generic internal error
// so underlying causes never reach callers.
func ErrorResponse(err error, traceID string) *APIResponse {
	errorDTO := &ErrorDTO{
		Code:    errors.CodeInternal,
		Message: "internal server error",
	}
	if appErr, ok := errors.AsAppError(err); ok {
		errorDTO.Code = appErr.Code
		errorDTO.Message = appErr.Message
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// SendSuccess writes the success envelope with the given status.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse(data, correlationID(c)))
}

// SendError writes the error envelope, taking the HTTP status from the error
// classification.
func SendError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatusOf(err), ErrorResponse(err, correlationID(c)))
}

// correlationID returns the id callers can quote when reporting a problem:
// the trace id when a span is recording, otherwise the request id.
func correlationID(c *gin.Context) string {
	if id := c.GetString(string(constants.ContextKeyTraceID)); id != "" {
		return id
	}
	return c.GetString(string(constants.ContextKeyRequestID))
}
