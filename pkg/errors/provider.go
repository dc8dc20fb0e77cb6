package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
)

// Kind 外部平台调用结果分类
type Kind int

const (
	KindPermanent   Kind = iota // 不可重试
	KindNotFound                // 资源不存在
	KindConflict                // 资源已存在 / 名称冲突
	KindRateLimited             // 被限流
	KindTransient               // 网络抖动 / 5xx / 超时
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// ProviderError 外部平台(GitHub/Cloudflare/...)调用错误
type ProviderError struct {
	Provider   string
	Op         string
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%s, status %d): %s", e.Provider, e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s failed (%s): %s", e.Provider, e.Op, e.Kind, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError 根据 HTTP 状态码分类
func NewProviderError(provider, op string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		Kind:       KindFromStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

// WrapTransport 包装网络层错误
func WrapTransport(provider, op string, err error) *ProviderError {
	kind := KindPermanent
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.As(err, &netErr) {
		kind = KindTransient
	}
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// KindFromStatus HTTP 状态码 -> Kind
func KindFromStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusConflict || statusCode == http.StatusUnprocessableEntity:
		return KindConflict
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// KindOf 返回错误分类, 非 ProviderError 视为 Permanent
func KindOf(err error) Kind {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindPermanent
}

// IsRetryable 限流/瞬时错误可以稍后重试
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindRateLimited || k == KindTransient
}

// IsNotFound 外部资源不存在
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
