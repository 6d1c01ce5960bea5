// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/kiddies/pkg/errors"
)

// Response is the envelope. Success responses carry Data and an optional
// Message; failures carry Error and sometimes partial Data.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the client facing part of an AppError.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data with the given status.
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

// SuccessWithMessage writes data along with a human readable message.
func SuccessWithMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// Error writes the envelope for err. Errors that are not AppErrors become a
// generic 500 so internal details never leak.
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData is Error for partial failures that still return a payload.
func ErrorWithData(c *gin.Context, err error, data any) {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternalServer
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	// the access log reports the cause of server errors
	if status >= http.StatusInternalServerError && appErr.Internal != nil {
		_ = c.Error(appErr.Internal)
	}

	c.JSON(status, Response{
		Data:  data,
		Error: &ErrorInfo{Code: appErr.Code, Message: appErr.Message},
	})
}
