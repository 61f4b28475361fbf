package inventory

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jimyag/aggravator/pkg/errors"
	"github.com/jimyag/aggravator/pkg/fetch"
	"github.com/jimyag/aggravator/pkg/logger"
	"github.com/jimyag/aggravator/pkg/tree"
)

// Builder 把根配置声明的片段聚合为一份 inventory 文档
// 流程: LoadRoot → ResolveEnvironment → MergeHosts → MergeGroupVars →
// MergeHostVars → Normalize，任何一步的错误都让整次构建失败
type Builder struct {
	fetcher *fetch.Fetcher
	baseURI string
	config  *RootConfig
}

// NewBuilder 获取并解析根配置，失败是致命的
// baseURI 同时作为后续所有相对片段引用的解析基准
func NewBuilder(uri string, fetcher *fetch.Fetcher) (*Builder, error) {
	if fetcher == nil {
		fetcher = fetch.NewFetcher()
	}

	raw, err := fetcher.Load(uri)
	if err != nil {
		return nil, err
	}

	config, err := NewRootConfig(raw)
	if err != nil {
		return nil, err
	}

	return &Builder{
		fetcher: fetcher,
		baseURI: uri,
		config:  config,
	}, nil
}

// Environments 返回上游定义的环境名列表（有序）
func (b *Builder) Environments() []string {
	return b.config.Environments()
}

// EnvironmentsTree 返回原始的 environments 子树，不做任何合并
func (b *Builder) EnvironmentsTree(name string) interface{} {
	return b.config.EnvironmentsTree(name)
}

// Groups 返回一个环境生成后的顶层组名（有序，_meta 除外）
func (b *Builder) Groups(env string) ([]string, error) {
	inv, err := b.Generate(env)
	if err != nil {
		return nil, err
	}

	groups := make([]string, 0, len(inv))
	for name := range inv {
		if name == "_meta" {
			continue
		}
		groups = append(groups, name)
	}
	sort.Strings(groups)
	return groups, nil
}

// Generate 为一个环境生成 inventory 文档
// 未定义的环境不报错，产出结构完整但内容为空的文档，
// 这样列出可用环境之类的工作流不会被打断
func (b *Builder) Generate(env string) (map[string]interface{}, error) {
	log := logger.GetLogger().With().
		Str("build_id", uuid.New().String()).
		Str("environment", env).
		Logger()

	// 文档骨架，platform_name 在 Normalize 阶段才补默认值，
	// 片段因此有机会先行定义它
	inv := map[string]interface{}{
		"_meta": map[string]interface{}{
			"hostvars": map[string]interface{}{},
		},
		"all": map[string]interface{}{
			"vars": map[string]interface{}{},
		},
	}

	entry, defined := b.config.Environment(env)
	if !defined {
		log.Debug().Msg("environment not defined upstream, producing empty inventory")
	}

	// 旧式 include 与 include_hosts 都按严格合并进文档根
	for _, category := range []string{CategoryInclude, CategoryHosts} {
		refs, err := b.categoryRefs(entry, env, category)
		if err != nil {
			return nil, err
		}
		for _, item := range refs {
			if inv, err = b.mergeHostFragment(inv, item, env, category, log); err != nil {
				return nil, err
			}
		}
	}

	groupVars, err := b.collectVars(entry, env, CategoryGroupVars, log)
	if err != nil {
		return nil, err
	}

	hostVars, err := b.collectVars(entry, env, CategoryHostVars, log)
	if err != nil {
		return nil, err
	}

	if err := b.normalize(inv, groupVars, hostVars, env); err != nil {
		return nil, err
	}

	log.Debug().Msg("inventory build complete")
	return inv, nil
}

// categoryRefs 取出环境条目下一个分类的引用列表
// 分类缺失按空列表处理，存在但不是序列则是配置错误
func (b *Builder) categoryRefs(entry map[string]interface{}, env, category string) ([]interface{}, error) {
	if entry == nil {
		return nil, nil
	}
	value, exists := entry[category]
	if !exists {
		return nil, nil
	}

	section := env + ":" + category
	if err := tree.AssertKind(value, []tree.Kind{tree.KindSequence}, section); err != nil {
		return nil, err
	}
	return value.([]interface{}), nil
}

// loadFragment 解析引用、定位并加载一个片段
func (b *Builder) loadFragment(item interface{}, env, category string, log zerolog.Logger) (FragmentRef, interface{}, error) {
	section := env + ":" + category

	ref, err := ParseFragmentRef(item, section)
	if err != nil {
		return ref, nil, err
	}

	resolved, err := fetch.Resolve(b.baseURI, ref.Path)
	if err != nil {
		return ref, nil, err
	}

	format, err := fetch.ParseFormat(ref.Format)
	if err != nil {
		return ref, nil, err
	}

	log.Debug().Str("uri", resolved).Str("category", category).Msg("loading fragment")
	fragment, err := b.fetcher.LoadAs(resolved, format)
	if err != nil {
		return ref, nil, err
	}
	return ref, fragment, nil
}

// mergeHostFragment 把一个主机片段按严格并集策略合并进文档
// 带 key 的引用只作用于目标键路径，不带 key 的合并整个文档根
func (b *Builder) mergeHostFragment(inv map[string]interface{}, item interface{}, env, category string, log zerolog.Logger) (map[string]interface{}, error) {
	section := env + ":" + category

	ref, fragment, err := b.loadFragment(item, env, category, log)
	if err != nil {
		return nil, err
	}

	if ref.Keyed() {
		segments := tree.SplitKeyPath(ref.Key)
		keyedSection := section + ":" + ref.Key

		existing, found := tree.GetPath(inv, segments)
		if !found {
			// 目标路径尚不存在，原样写入
			if err := tree.SetPath(inv, segments, tree.Copy(fragment), keyedSection); err != nil {
				return nil, err
			}
			return inv, nil
		}

		merged, err := tree.Merge(existing, fragment, keyedSection)
		if err != nil {
			return nil, err
		}
		if err := tree.SetPath(inv, segments, merged, keyedSection); err != nil {
			return nil, err
		}
		return inv, nil
	}

	if err := tree.AssertKind(fragment, []tree.Kind{tree.KindMapping}, section); err != nil {
		return nil, err
	}

	// 两侧的裸序列组先归一化为 {hosts: ...}，
	// 序列形式的组才能与映射形式的同名组求并集
	normalizedInv, err := normalizeGroups(inv, section)
	if err != nil {
		return nil, err
	}
	normalizedFragment, err := normalizeGroups(fragment.(map[string]interface{}), section)
	if err != nil {
		return nil, err
	}

	merged, err := tree.Merge(normalizedInv, normalizedFragment, section)
	if err != nil {
		return nil, err
	}
	return merged.(map[string]interface{}), nil
}

// collectVars 聚合一个变量分类的所有片段，覆盖式合并，后写者胜出
func (b *Builder) collectVars(entry map[string]interface{}, env, category string, log zerolog.Logger) (map[string]interface{}, error) {
	working := map[string]interface{}{}
	section := env + ":" + category

	refs, err := b.categoryRefs(entry, env, category)
	if err != nil {
		return nil, err
	}

	for _, item := range refs {
		ref, fragment, err := b.loadFragment(item, env, category, log)
		if err != nil {
			return nil, err
		}

		if ref.Keyed() {
			segments := tree.SplitKeyPath(ref.Key)
			keyedSection := section + ":" + ref.Key

			existing, found := tree.GetPath(working, segments)
			if found {
				existingMap, existingOK := existing.(map[string]interface{})
				fragmentMap, fragmentOK := fragment.(map[string]interface{})
				if existingOK && fragmentOK {
					merged, err := tree.Overlay(existingMap, fragmentMap)
					if err != nil {
						return nil, err
					}
					if err := tree.SetPath(working, segments, merged, keyedSection); err != nil {
						return nil, err
					}
					continue
				}
			}
			if err := tree.SetPath(working, segments, tree.Copy(fragment), keyedSection); err != nil {
				return nil, err
			}
			continue
		}

		if err := tree.AssertKind(fragment, []tree.Kind{tree.KindMapping}, section); err != nil {
			return nil, err
		}
		if working, err = tree.Overlay(working, fragment.(map[string]interface{})); err != nil {
			return nil, err
		}
	}

	return working, nil
}

// normalizeGroups 把映射的每个顶层组归一化，裸序列变为 {hosts: ...}
// 顶层出现标量是结构错误
func normalizeGroups(m map[string]interface{}, section string) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))
	for name, value := range m {
		converted, err := tree.ConvertSequenceToMapping(value, section+"/"+name)
		if err != nil {
			return nil, err
		}
		result[name] = converted
	}
	return result, nil
}

// normalize 收尾整形，保证文档满足输出契约:
// _meta.hostvars 是映射；每个组是带 vars 的映射；组变量叠加到组上；
// platform_name 默认等于环境名；主机变量叠加进 _meta.hostvars
func (b *Builder) normalize(inv, groupVars, hostVars map[string]interface{}, env string) error {
	section := env + ":normalize"

	// (a) _meta.hostvars 必须存在且是映射
	meta, ok := inv["_meta"].(map[string]interface{})
	if !ok {
		if _, exists := inv["_meta"]; exists {
			return errors.NewTypeMismatchError(section+"/_meta", tree.KindOf(inv["_meta"]).String(), tree.KindMapping.String())
		}
		meta = map[string]interface{}{}
		inv["_meta"] = meta
	}
	hostvars, ok := meta["hostvars"].(map[string]interface{})
	if !ok {
		if _, exists := meta["hostvars"]; exists {
			return errors.NewTypeMismatchError(section+"/_meta/hostvars", tree.KindOf(meta["hostvars"]).String(), tree.KindMapping.String())
		}
		hostvars = map[string]interface{}{}
		meta["hostvars"] = hostvars
	}
	for host, value := range hostvars {
		if err := tree.AssertKind(value, []tree.Kind{tree.KindMapping}, section+"/_meta/hostvars/"+host); err != nil {
			return err
		}
	}

	// (b) 每个组是映射，裸序列转为 {hosts: ...}，保证 vars 存在
	for name, value := range inv {
		if name == "_meta" {
			continue
		}
		group, err := tree.ConvertSequenceToMapping(value, section+"/"+name)
		if err != nil {
			return err
		}
		if varsVal, exists := group["vars"]; exists {
			if err := tree.AssertKind(varsVal, []tree.Kind{tree.KindMapping}, section+"/"+name+"/vars"); err != nil {
				return err
			}
		} else {
			group["vars"] = map[string]interface{}{}
		}
		inv[name] = group
	}

	// (c) 组变量叠加到各组的 vars 上
	for name, value := range groupVars {
		vars, ok := value.(map[string]interface{})
		if !ok {
			return errors.NewTypeMismatchError(section+"/"+name, tree.KindOf(value).String(), tree.KindMapping.String())
		}

		group, exists := inv[name].(map[string]interface{})
		if !exists {
			inv[name] = map[string]interface{}{
				"vars": tree.Copy(vars),
			}
			continue
		}

		groupVarsExisting, _ := group["vars"].(map[string]interface{})
		merged, err := tree.Overlay(groupVarsExisting, vars)
		if err != nil {
			return err
		}
		group["vars"] = merged
	}

	// (d) platform_name 默认等于环境名，片段已设置时尊重片段
	all, ok := inv["all"].(map[string]interface{})
	if !ok {
		all = map[string]interface{}{"vars": map[string]interface{}{}}
		inv["all"] = all
	}
	allVars, ok := all["vars"].(map[string]interface{})
	if !ok {
		allVars = map[string]interface{}{}
		all["vars"] = allVars
	}
	if _, exists := allVars["platform_name"]; !exists {
		allVars["platform_name"] = env
	}

	// (e) 主机变量叠加进 _meta.hostvars
	for host, value := range hostVars {
		vars, ok := value.(map[string]interface{})
		if !ok {
			return errors.NewTypeMismatchError(section+"/_meta/hostvars/"+host, tree.KindOf(value).String(), tree.KindMapping.String())
		}

		existing, exists := hostvars[host].(map[string]interface{})
		if !exists {
			hostvars[host] = tree.Copy(vars)
			continue
		}

		merged, err := tree.Overlay(existing, vars)
		if err != nil {
			return err
		}
		hostvars[host] = merged
	}

	return nil
}
