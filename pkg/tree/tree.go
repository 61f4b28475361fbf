package tree

import (
	"strings"

	"github.com/jimyag/aggravator/pkg/errors"
)

// Kind 表示树节点的类别
type Kind int

const (
	// KindMapping 映射节点（字符串键）
	KindMapping Kind = iota
	// KindSequence 有序序列节点
	KindSequence
	// KindScalar 标量节点（字符串、数字、布尔、null）
	KindScalar
)

// String 返回类别名称
func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// KindOf 返回值的类别
// 解析器（yaml.v3 / encoding/json）产出的树只有三种形态:
// map[string]interface{}、[]interface{} 和标量
func KindOf(value interface{}) Kind {
	switch value.(type) {
	case map[string]interface{}:
		return KindMapping
	case []interface{}:
		return KindSequence
	default:
		return KindScalar
	}
}

// AssertKind 校验值属于允许的类别之一，否则返回 TypeMismatch 错误
// section 是用于定位问题的人类可读路径，如 "prod:include_hosts"
func AssertKind(value interface{}, kinds []Kind, section string) error {
	got := KindOf(value)
	for _, k := range kinds {
		if got == k {
			return nil
		}
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return errors.NewTypeMismatchError(section, got.String(), strings.Join(names, ", "))
}

// ConvertSequenceToMapping 将序列归一化为 {hosts: <sequence>} 形式的映射
// 映射原样返回，其他类型返回 TypeMismatch 错误
func ConvertSequenceToMapping(value interface{}, section string) (map[string]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return map[string]interface{}{"hosts": v}, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, errors.NewTypeMismatchError(section, KindOf(value).String(), "mapping, sequence")
	}
}

// Copy 深拷贝一棵树
// 合并引擎的纯函数语义依赖它：任何合并结果都不共享输入的可变结构
func Copy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = Copy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Copy(item)
		}
		return out
	default:
		// 标量不可变，直接返回
		return v
	}
}
