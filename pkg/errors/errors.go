// Package errors 应用错误码与 HTTP 状态映射
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 对外暴露的错误码，按段划分：1xxx 通用，2xxx 认证，3xxx 资源，4xxx 生成流程，5xxx 依赖
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	CodeTokenExpired ErrorCode = "2001"
	CodeTokenInvalid ErrorCode = "2002"
	CodeTokenMissing ErrorCode = "2003"

	CodeGenerationNotFound ErrorCode = "3001"

	CodeOutlineParseError       ErrorCode = "4001"
	CodeGenerationUnavailable   ErrorCode = "4002"
	CodeChapterGenerationFailed ErrorCode = "4003"
	CodeSummarizationFailed     ErrorCode = "4004"
	CodePersistenceConflict     ErrorCode = "4005"
	CodeImageGenerationFailed   ErrorCode = "4006"
	CodeEmbeddingFailed         ErrorCode = "4007"
	CodeRepetitionCheckFailed   ErrorCode = "4008"

	CodeDatabaseError ErrorCode = "5001"
	CodeVectorDBError ErrorCode = "5003"
	CodeQueueError    ErrorCode = "5004"
)

// httpStatus 未列出的错误码一律 500
var httpStatus = map[ErrorCode]int{
	CodeInvalidParam:            http.StatusBadRequest,
	CodeTokenExpired:            http.StatusUnauthorized,
	CodeTokenInvalid:            http.StatusUnauthorized,
	CodeTokenMissing:            http.StatusUnauthorized,
	CodeGenerationNotFound:      http.StatusNotFound,
	CodePersistenceConflict:     http.StatusConflict,
	CodeTooManyRequests:         http.StatusTooManyRequests,
	CodeServiceUnavailable:      http.StatusServiceUnavailable,
	CodeGenerationUnavailable:   http.StatusServiceUnavailable,
	CodeOutlineParseError:       http.StatusBadGateway,
	CodeChapterGenerationFailed: http.StatusBadGateway,
	CodeSummarizationFailed:     http.StatusBadGateway,
}

// StatusOf 错误码对应的 HTTP 状态
func StatusOf(code ErrorCode) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError 携带错误码的错误，Err 为底层原因
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is 错误码相同即视为同一错误，包装后的哨兵实例仍能被 errors.Is 识别
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetail 返回副本，哨兵错误本身不变
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: StatusOf(code)}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrGenerationNotFound = New(CodeGenerationNotFound, "generation not found")

	ErrOutlineParse            = New(CodeOutlineParseError, "outline response could not be parsed")
	ErrGenerationUnavailable   = New(CodeGenerationUnavailable, "text generation service unavailable")
	ErrChapterGenerationFailed = New(CodeChapterGenerationFailed, "chapter generation failed")
	ErrSummarizationFailed     = New(CodeSummarizationFailed, "chapter summarization failed")
	ErrPersistenceConflict     = New(CodePersistenceConflict, "record already exists")
	ErrImageGenerationFailed   = New(CodeImageGenerationFailed, "image generation failed")
	ErrEmbeddingFailed         = New(CodeEmbeddingFailed, "embedding failed")
)

// AsAppError 非 AppError 包装为 CodeUnknown
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 错误链中第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
