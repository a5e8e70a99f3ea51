// Package apperror 定义 HTTP 层错误分类
//
// 各 handler 在本地捕获存储/库错误并转换为这里的错误类型，
// Operational 标记区分"可预期的领域错误"（消息可直接返回给调用方）
// 与"意外故障"（生产环境只返回通用消息，详情进日志）。
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 携带 HTTP 状态码的领域错误
type Error struct {
	Status      int    // HTTP 状态码
	Message     string // 对外消息（Operational 时原样返回）
	Operational bool   // 可预期的领域错误
	Err         error  // 底层错误（只进日志/非生产响应）
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 请求字段缺失或非法 (400)
func Validation(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...), Operational: true}
}

// Unauthenticated 缺失/非法/过期凭证 (401)
func Unauthenticated(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message, Operational: true}
}

// Forbidden 角色或所有权不匹配 (403)
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message, Operational: true}
}

// NotFound 资源不存在 (404)
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message, Operational: true}
}

// Conflict 唯一性约束冲突 (409)
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message, Operational: true}
}

// TooManyRequests 触发限流 (429)
func TooManyRequests(message string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Message: message, Operational: true}
}

// Internal 意外的存储/投递故障 (500)
// 非 Operational：对外只显示通用消息
func Internal(err error) *Error {
	return &Error{
		Status:      http.StatusInternalServerError,
		Message:     "something went wrong, please try again later",
		Operational: false,
		Err:         err,
	}
}

// From 将任意错误规范化为 *Error，未知错误按 Internal 处理
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
