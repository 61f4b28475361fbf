package tree

import (
	"strings"

	"github.com/jimyag/aggravator/pkg/errors"
)

// SplitKeyPath 把键路径拆分为段
// 含 "/" 的路径按 "/" 拆分（dpath 风格），否则按 "." 拆分
func SplitKeyPath(key string) []string {
	sep := "."
	if strings.Contains(key, "/") {
		sep = "/"
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(key, sep) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// GetPath 按段读取子树，任何一段缺失或中间节点不是映射时返回 false
func GetPath(root map[string]interface{}, segments []string) (interface{}, bool) {
	var current interface{} = root
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetPath 按段写入子树，中间缺失的映射会被创建
// 中间节点已存在但不是映射时返回 TypeMismatch
func SetPath(root map[string]interface{}, segments []string, value interface{}, section string) error {
	if len(segments) == 0 {
		return errors.NewTypeMismatchError(section, "empty key path", "non-empty key path")
	}

	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, exists := current[seg]
		if !exists {
			child := make(map[string]interface{})
			current[seg] = child
			current = child
			continue
		}

		child, ok := next.(map[string]interface{})
		if !ok {
			return errors.NewTypeMismatchError(section+"/"+seg, KindOf(next).String(), KindMapping.String())
		}
		current = child
	}

	current[segments[len(segments)-1]] = value
	return nil
}
