// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"

	// 分析引擎相关
	CodeInputAlignment  Code = "INPUT_ALIGNMENT"  // 时间槽索引不一致（致命）
	CodeNegativeValue   Code = "NEGATIVE_VALUE"   // 原始值为负（致命）
	CodeMissingCategory Code = "MISSING_CATEGORY" // 配置的分类在数据中不存在（可恢复）
	CodeUnattributed    Code = "UNATTRIBUTED"     // 分类权重为0，部分缺员/过剩无法按比例归属（可恢复）

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// Fatal 是否为中止整个运行的错误
func (e *AppError) Fatal() bool {
	return e.Code != CodeMissingCategory && e.Code != CodeUnattributed
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInputAlignment, CodeNegativeValue:
		return http.StatusUnprocessableEntity
	case CodeMissingCategory, CodeUnattributed:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNotFound     = New(CodeNotFound, "资源不存在")
	ErrInvalidInput = New(CodeInvalidInput, "输入参数无效")
	ErrInternal     = New(CodeInternal, "内部错误")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason)).
		WithField("field", field)
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// InputAlignment 创建索引不一致错误，matrix 标明出错的矩阵
func InputAlignment(matrix, details string) *AppError {
	return New(CodeInputAlignment, fmt.Sprintf("矩阵 '%s' 时间槽索引不一致", matrix)).
		WithDetails(details).
		WithField("matrix", matrix)
}

// NegativeValue 创建负值错误
func NegativeValue(series, scope, slot string, value float64) *AppError {
	return New(CodeNegativeValue, fmt.Sprintf("%s 序列 '%s' 在 %s 出现负值 %g", series, scope, slot, value)).
		WithField("matrix", series).
		WithField("category", scope).
		WithField("slot", slot).
		WithField("value", value)
}

// MissingCategory 创建分类缺失诊断
func MissingCategory(category string) *AppError {
	return New(CodeMissingCategory, fmt.Sprintf("配置的分类 '%s' 在数据中不存在，分配记为 0", category)).
		WithField("category", category)
}

// Unattributed 创建无法归属诊断，lack/excess 为时间槽单位数
func Unattributed(dimension string, lack, excess int) *AppError {
	return New(CodeUnattributed, fmt.Sprintf("维度 '%s' 有 %d 个缺员单位、%d 个过剩单位无法按比例归属", dimension, lack, excess)).
		WithField("dimension", dimension).
		WithField("lack_units", lack).
		WithField("excess_units", excess)
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "验证失败")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
