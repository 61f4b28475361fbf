package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义构建错误类型
type ErrorType int

const (
	// ErrUnsupportedScheme 不支持的 URI scheme
	ErrUnsupportedScheme ErrorType = iota
	// ErrNotFound 数据源不存在（本地文件缺失或 HTTP 404）
	ErrNotFound
	// ErrRetrievalFailed 获取数据失败（非 404 的 HTTP 错误、读取失败等）
	ErrRetrievalFailed
	// ErrUnsupportedFormat 无法识别的数据格式
	ErrUnsupportedFormat
	// ErrParse 解析错误（YAML/JSON 反序列化失败）
	ErrParse
	// ErrTypeMismatch 合并时类型不匹配
	ErrTypeMismatch
	// ErrBadKey vault 密码错误（HMAC 校验失败）
	ErrBadKey
	// ErrCorruptBlob vault 密文损坏或格式非法
	ErrCorruptBlob
	// ErrUnknown 未分类错误
	ErrUnknown
)

// String 返回错误类型的名称
func (t ErrorType) String() string {
	switch t {
	case ErrUnsupportedScheme:
		return "UnsupportedScheme"
	case ErrNotFound:
		return "NotFound"
	case ErrRetrievalFailed:
		return "RetrievalFailed"
	case ErrUnsupportedFormat:
		return "UnsupportedFormat"
	case ErrParse:
		return "ParseError"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrBadKey:
		return "BadKey"
	case ErrCorruptBlob:
		return "CorruptBlob"
	default:
		return "Unknown"
	}
}

// InventoryError 统一的构建错误类型
type InventoryError struct {
	Type    ErrorType // 错误类型
	URI     string    // 出错的数据源 URI（如果适用）
	Section string    // 出错位置，如 "prod:include_hosts"（如果适用）
	Message string    // 错误消息
	Cause   error     // 原始错误
}

func (e *InventoryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.URI != "" {
		msg = fmt.Sprintf("%s (uri: %s)", msg, e.URI)
	}
	if e.Section != "" {
		msg = fmt.Sprintf("%s (section: %s)", msg, e.Section)
	}
	return msg
}

func (e *InventoryError) Unwrap() error {
	return e.Cause
}

// TypeOf 提取错误的分类，非 InventoryError 返回 ErrUnknown
func TypeOf(err error) ErrorType {
	var invErr *InventoryError
	if errors.As(err, &invErr) {
		return invErr.Type
	}
	return ErrUnknown
}

// IsType 判断错误是否属于某个分类
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// NewUnsupportedSchemeError 创建不支持 scheme 的错误
func NewUnsupportedSchemeError(uri, scheme string) *InventoryError {
	return &InventoryError{
		Type:    ErrUnsupportedScheme,
		URI:     uri,
		Message: fmt.Sprintf("unsupported URI scheme '%s'", scheme),
	}
}

// NewNotFoundError 创建数据源不存在的错误
func NewNotFoundError(uri string) *InventoryError {
	return &InventoryError{
		Type:    ErrNotFound,
		URI:     uri,
		Message: "failed to find data",
	}
}

// NewRetrievalFailedError 创建获取失败的错误
func NewRetrievalFailedError(uri string, cause error) *InventoryError {
	return &InventoryError{
		Type:    ErrRetrievalFailed,
		URI:     uri,
		Message: fmt.Sprintf("failed to retrieve data: %v", cause),
		Cause:   cause,
	}
}

// NewUnsupportedFormatError 创建不支持格式的错误
func NewUnsupportedFormatError(uri, format string) *InventoryError {
	return &InventoryError{
		Type:    ErrUnsupportedFormat,
		URI:     uri,
		Message: fmt.Sprintf("unsupported data format '%s'", format),
	}
}

// NewParseError 创建解析错误
func NewParseError(uri string, cause error) *InventoryError {
	return &InventoryError{
		Type:    ErrParse,
		URI:     uri,
		Message: fmt.Sprintf("failed to parse: %v", cause),
		Cause:   cause,
	}
}

// NewTypeMismatchError 创建类型不匹配错误
func NewTypeMismatchError(section, got, want string) *InventoryError {
	return &InventoryError{
		Type:    ErrTypeMismatch,
		Section: section,
		Message: fmt.Sprintf("invalid type '%s', must be: %s", got, want),
	}
}

// NewBadKeyError 创建 vault 密码错误
func NewBadKeyError(uri string) *InventoryError {
	return &InventoryError{
		Type:    ErrBadKey,
		URI:     uri,
		Message: "vault password is incorrect (HMAC verification failed)",
	}
}

// NewCorruptBlobError 创建 vault 密文损坏错误
func NewCorruptBlobError(uri string, cause error) *InventoryError {
	return &InventoryError{
		Type:    ErrCorruptBlob,
		URI:     uri,
		Message: fmt.Sprintf("vault payload is corrupt: %v", cause),
		Cause:   cause,
	}
}
