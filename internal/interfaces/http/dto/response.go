// Package dto HTTP 请求与响应结构
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "z-ebook-api/pkg/errors"
)

// Response 成功响应信封
type Response[T any] struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Meta    *PageMeta `json:"meta,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 失败响应信封，error.error_code 为 AppError 错误码
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

func respond[T any](c *gin.Context, status int, message string, data T, meta *PageMeta) {
	c.JSON(status, Response[T]{
		Code:    status,
		Message: message,
		Data:    data,
		Meta:    meta,
		TraceID: c.GetString("trace_id"),
	})
}

func Success[T any](c *gin.Context, data T) {
	respond(c, http.StatusOK, "success", data, nil)
}

func SuccessWithPage[T any](c *gin.Context, data T, meta *PageMeta) {
	respond(c, http.StatusOK, "success", data, meta)
}

// Accepted 异步任务已入队
func Accepted[T any](c *gin.Context, data T) {
	respond(c, http.StatusAccepted, "accepted", data, nil)
}

func errorBody(c *gin.Context, err error) (int, ErrorResponse) {
	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = apperrors.StatusOf(appErr.Code)
	}
	message := appErr.Message
	// 未归类的错误不向调用方暴露内部信息
	if appErr.Code == apperrors.CodeUnknown {
		message = apperrors.ErrInternalError.Message
	}
	return status, ErrorResponse{
		Code:    status,
		Message: message,
		Error:   &ErrorDetail{ErrorCode: string(appErr.Code), Details: appErr.Detail},
		TraceID: c.GetString("trace_id"),
	}
}

// FromError 按 AppError 错误码写出响应
func FromError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// Abort 中间件使用，写出错误并终止后续处理
func Abort(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

func BadRequest(c *gin.Context, detail string) {
	FromError(c, apperrors.ErrInvalidParam.WithDetail(detail))
}

func ServiceUnavailable(c *gin.Context, detail string) {
	FromError(c, apperrors.ErrServiceUnavailable.WithDetail(detail))
}

// NewPageMeta total_pages 向上取整
func NewPageMeta(page, pageSize int, total int64) *PageMeta {
	meta := &PageMeta{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}
