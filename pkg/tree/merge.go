package tree

import (
	"reflect"

	"dario.cat/mergo"

	"github.com/jimyag/aggravator/pkg/errors"
)

// Merge 按严格策略合并两棵树并返回新树，不修改任何输入
// 策略（两侧均为映射时逐键应用）:
//  1. base 缺少的键，取 incoming 的值
//  2. 两侧都是序列，做去重并集（不是拼接）
//  3. 两侧都是映射，递归合并
//  4. 出现标量且两侧值不相等，或两侧类别不同，返回 TypeMismatch
//
// 相等的标量原样保留，合并因此是幂等的
func Merge(base, incoming interface{}, section string) (interface{}, error) {
	if base == nil {
		return Copy(incoming), nil
	}
	if incoming == nil {
		return Copy(base), nil
	}

	baseMap, baseIsMap := base.(map[string]interface{})
	incMap, incIsMap := incoming.(map[string]interface{})
	if baseIsMap && incIsMap {
		return mergeMappings(baseMap, incMap, section)
	}

	baseSeq, baseIsSeq := base.([]interface{})
	incSeq, incIsSeq := incoming.([]interface{})
	if baseIsSeq && incIsSeq {
		return unionSequences(baseSeq, incSeq), nil
	}

	// 标量对标量：相等则保留，不一致即冲突
	if !baseIsMap && !baseIsSeq && !incIsMap && !incIsSeq {
		if reflect.DeepEqual(base, incoming) {
			return base, nil
		}
		return nil, errors.NewTypeMismatchError(section, "conflicting scalar values", "identical scalars, sequences or mappings")
	}

	return nil, errors.NewTypeMismatchError(section, KindOf(incoming).String(), KindOf(base).String())
}

// mergeMappings 逐键合并两个映射
func mergeMappings(base, incoming map[string]interface{}, section string) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(base)+len(incoming))
	for k, v := range base {
		result[k] = Copy(v)
	}

	for k, incVal := range incoming {
		baseVal, exists := result[k]
		if !exists {
			result[k] = Copy(incVal)
			continue
		}

		merged, err := Merge(baseVal, incVal, section+"/"+k)
		if err != nil {
			return nil, err
		}
		result[k] = merged
	}

	return result, nil
}

// unionSequences 求两个序列的去重并集
// 顺序确定：先保持 base 的顺序，再按首次出现顺序追加 incoming 中的新元素
func unionSequences(base, incoming []interface{}) []interface{} {
	result := make([]interface{}, 0, len(base)+len(incoming))
	for _, item := range base {
		if !containsValue(result, item) {
			result = append(result, Copy(item))
		}
	}
	for _, item := range incoming {
		if !containsValue(result, item) {
			result = append(result, Copy(item))
		}
	}
	return result
}

// containsValue 检查序列是否包含与 item 深度相等的元素
func containsValue(seq []interface{}, item interface{}) bool {
	for _, existing := range seq {
		if reflect.DeepEqual(existing, item) {
			return true
		}
	}
	return false
}

// Overlay 做覆盖式合并：映射递归合并，标量和序列后写者胜出
// 用于变量类片段（group vars / host vars），变量是叠加层而不是集合
func Overlay(base, incoming map[string]interface{}) (map[string]interface{}, error) {
	result, ok := Copy(base).(map[string]interface{})
	if !ok || result == nil {
		result = make(map[string]interface{})
	}

	src, ok := Copy(incoming).(map[string]interface{})
	if !ok {
		src = make(map[string]interface{})
	}

	if err := mergo.Merge(&result, src, mergo.WithOverride); err != nil {
		return nil, err
	}
	return result, nil
}
