package policy

import (
	"sort"
	"strconv"
	"strings"
)

/********** 目录查询（纯函数，绝不修改 defs） **********/

// Scopes 返回全部已知 scope（有序）
func Scopes() []string {
	out := make([]string, 0, len(defs))
	for s := range defs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ActionsOf：scope/group 未知时返回空 map，不报错（目录只是提示性的）
func ActionsOf(scope, group string) map[string]ActionDetail {
	groups, ok := defs[scope]
	if !ok {
		return map[string]ActionDetail{}
	}
	acts, ok := groups[group]
	if !ok {
		return map[string]ActionDetail{}
	}
	out := make(map[string]ActionDetail, len(acts))
	for k, v := range acts {
		out[k] = v
	}
	return out
}

// ScopeOfAction：反查动作所属 scope；多处同名时取字典序最小的 scope，未知返回 ""
func ScopeOfAction(name string) string {
	for _, scope := range Scopes() {
		for _, acts := range defs[scope] {
			if _, ok := acts[name]; ok {
				return scope
			}
		}
	}
	return ""
}

// FilteredActionGroups：
//   - 排除 added 中已存在的动作名
//   - textFilter 非空时只留名字包含其大小写不敏感子串的动作
//   - 过滤后为空的 group 整组去掉
func FilteredActionGroups(scope string, added map[string]string, textFilter string) map[string]map[string]ActionDetail {
	groups, ok := defs[scope]
	if !ok {
		return map[string]map[string]ActionDetail{}
	}
	needle := strings.ToLower(strings.TrimSpace(textFilter))

	out := make(map[string]map[string]ActionDetail, len(groups))
	for g, acts := range groups {
		kept := make(map[string]ActionDetail, len(acts))
		for name, d := range acts {
			if _, dup := added[name]; dup {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
			kept[name] = d
		}
		if len(kept) > 0 {
			out[g] = kept
		}
	}
	return out
}

// ActionValueOK：按类型校验动作值
//   - bool: true/false/1/0（大小写不敏感）
//   - int:  必须可解析为整数；有白名单时还须命中
//   - str/text: 非空；有白名单时还须命中
func ActionValueOK(d ActionDetail, value string) bool {
	v := strings.TrimSpace(value)
	switch d.Type {
	case TypeBool:
		switch strings.ToLower(v) {
		case "true", "false", "1", "0":
			return true
		}
		return false

	case TypeInt:
		if _, err := strconv.Atoi(v); err != nil {
			return false
		}
		return inValueList(d.Value, v)

	case TypeStr, TypeText:
		if v == "" {
			return false
		}
		return inValueList(d.Value, v)

	default:
		return false
	}
}

func inValueList(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// actionInScope：动作名是否属于 scope 的目录；返回其 detail
func actionInScope(scope, name string) (ActionDetail, bool) {
	groups, ok := defs[scope]
	if !ok {
		return ActionDetail{}, false
	}
	for _, acts := range groups {
		if d, ok := acts[name]; ok {
			return d, true
		}
	}
	return ActionDetail{}, false
}
