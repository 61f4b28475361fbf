package inventory

import (
	"sort"

	"github.com/jimyag/aggravator/pkg/errors"
	"github.com/jimyag/aggravator/pkg/tree"
)

// 环境条目下的片段分类，按声明顺序处理
const (
	// CategoryInclude 旧式单一分类，整个片段按严格合并进文档根
	CategoryInclude = "include"
	// CategoryHosts 主机片段，序列做去重并集合并
	CategoryHosts = "include_hosts"
	// CategoryGroupVars 组变量片段，覆盖式合并
	CategoryGroupVars = "include_group_vars"
	// CategoryHostVars 主机变量片段，覆盖式合并
	CategoryHostVars = "include_host_vars"
)

// FragmentRef 表示一条片段引用
// 配置里允许两种写法：裸 URI 字符串，或带属性的映射
// {path: <uri>, key: <键路径>, format: <格式名>}
// 写法差异在加载配置时一次性消解，合并逻辑只面对这个结构
type FragmentRef struct {
	Path   string // 片段的 URI，必填
	Key    string // 目标键路径，空表示合并进根
	Format string // 显式格式名，空表示按后缀推断
}

// Keyed 判断引用是否指定了目标键路径
func (r FragmentRef) Keyed() bool {
	return r.Key != ""
}

// ParseFragmentRef 把配置树里的一个 include 条目解析为 FragmentRef
func ParseFragmentRef(value interface{}, section string) (FragmentRef, error) {
	switch v := value.(type) {
	case string:
		return FragmentRef{Path: v}, nil
	case map[string]interface{}:
		ref := FragmentRef{}
		var ok bool
		pathVal, exists := v["path"]
		if !exists {
			return ref, errors.NewTypeMismatchError(section, "mapping without 'path'", "mapping with 'path'")
		}
		if ref.Path, ok = pathVal.(string); !ok {
			return ref, errors.NewTypeMismatchError(section+"/path", tree.KindOf(pathVal).String(), "scalar (string)")
		}
		if keyVal, exists := v["key"]; exists {
			if ref.Key, ok = keyVal.(string); !ok {
				return ref, errors.NewTypeMismatchError(section+"/key", tree.KindOf(keyVal).String(), "scalar (string)")
			}
		}
		if formatVal, exists := v["format"]; exists {
			if ref.Format, ok = formatVal.(string); !ok {
				return ref, errors.NewTypeMismatchError(section+"/format", tree.KindOf(formatVal).String(), "scalar (string)")
			}
		}
		return ref, nil
	default:
		return FragmentRef{}, errors.NewTypeMismatchError(section, tree.KindOf(value).String(), "scalar (string), mapping")
	}
}

// RootConfig 包装根配置文档
// 每次构建只获取一次，之后只读
type RootConfig struct {
	tree map[string]interface{}
}

// NewRootConfig 校验并包装根配置树
func NewRootConfig(value interface{}) (*RootConfig, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.NewTypeMismatchError("config", tree.KindOf(value).String(), tree.KindMapping.String())
	}
	return &RootConfig{tree: m}, nil
}

// Environments 返回已定义环境名的有序列表
func (c *RootConfig) Environments() []string {
	envs, ok := c.tree["environments"].(map[string]interface{})
	if !ok {
		return []string{}
	}

	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environment 返回一个环境的条目
// 未定义的环境返回 false，调用方按空环境处理而不是报错
func (c *RootConfig) Environment(name string) (map[string]interface{}, bool) {
	envs, ok := c.tree["environments"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	entry, ok := envs[name].(map[string]interface{})
	return entry, ok
}

// EnvironmentsTree 返回原始 environments 子树（--tree 模式用，不做合并）
// name 为空时返回全部环境
func (c *RootConfig) EnvironmentsTree(name string) interface{} {
	envs, ok := c.tree["environments"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	if name == "" {
		return envs
	}
	return envs[name]
}
