package llm

import (
	"context"
	"errors"
	"fmt"
)

// Kind 标记大模型调用失败的类别，便于日志与测试区分。
type Kind string

const (
	// KindConfig 缺少凭证等配置，调用前即失败。
	KindConfig Kind = "config"
	// KindTransport 网络层失败或超时。
	KindTransport Kind = "transport"
	// KindHTTP 上游返回非 2xx 状态码。
	KindHTTP Kind = "http"
	// KindUpstream 上游响应体中带有 error 字段。
	KindUpstream Kind = "upstream"
	// KindShape 缺少 choices / message / fortunes 等字段。
	KindShape Kind = "shape"
	// KindParse 需要 JSON 的地方无法解析。
	KindParse Kind = "parse"
	// KindUnknown 非本包产生的错误。
	KindUnknown Kind = "unknown"
)

// Error 是网关层统一的错误类型。Detail 只用于服务端日志，不返回给调用方。
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrMissingAPIKey 在未配置凭证时返回。
var ErrMissingAPIKey = errors.New("api key is not configured")

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 返回 err 链上第一个 *Error 的类别。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindUnknown
}

// IsKind 判断 err 是否属于指定类别。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify 把第三方 SDK 返回的错误归入网关的错误类别。
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTransport, op, err)
	}
	return newError(KindUpstream, op, err)
}
