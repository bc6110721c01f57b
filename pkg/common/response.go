package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope returned by every API route
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// SuccessResponse writes a 200 envelope
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// ErrorResponse writes an error envelope with the given status
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// AppErrorResponse writes an error envelope for appErr
func AppErrorResponse(c *gin.Context, appErr *AppError) {
	c.JSON(appErr.Code, Response{
		Success: false,
		Error:   &ErrorInfo{Code: appErr.Code, Message: appErr.Message, Kind: appErr.Kind},
	})
}

// HandleError maps err to its HTTP form and records it on the gin context
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	AppErrorResponse(c, ToAppError(err))
}
