package policy

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

/********** 策略草稿（编辑期模型） **********/

// Condition 在线格式是 6 元组：
// [section, key, comparator, value, active, handle_missing_data]
type Condition struct {
	Section           string
	Key               string
	Comparator        string
	Value             string
	Active            bool
	HandleMissingData string
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Section, c.Key, c.Comparator, c.Value, c.Active, c.HandleMissingData})
}

func (c *Condition) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if len(arr) != 6 {
		return fmt.Errorf("condition tuple must have 6 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &c.Section); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &c.Key); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[2], &c.Comparator); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[3], &c.Value); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[4], &c.Active); err != nil {
		return err
	}
	return json.Unmarshal(arr[5], &c.HandleMissingData)
}

type Detail struct {
	Name                string            `json:"name"`
	Scope               string            `json:"scope"`
	Priority            int               `json:"priority"`
	Active              bool              `json:"active"`
	Description         string            `json:"description"`
	Action              map[string]string `json:"action"`
	Realm               []string          `json:"realm"`
	Resolver            []string          `json:"resolver"`
	User                []string          `json:"user"`
	AdminRealm          []string          `json:"adminrealm"`
	AdminUser           []string          `json:"adminuser"`
	PINode              []string          `json:"pinode"`
	Client              []string          `json:"client"`
	UserAgents          []string          `json:"user_agents"`
	UserCaseInsensitive bool              `json:"user_case_insensitive"`
	Time                string            `json:"time"`
	Conditions          []Condition       `json:"conditions"`
}

// Patch：全指针字段；nil = 该键未提供，保留旧值
type Patch struct {
	Scope               *string            `json:"scope"`
	Priority            *int               `json:"priority"`
	Active              *bool              `json:"active"`
	Description         *string            `json:"description"`
	Action              *map[string]string `json:"action"`
	Realm               *[]string          `json:"realm"`
	Resolver            *[]string          `json:"resolver"`
	User                *[]string          `json:"user"`
	AdminRealm          *[]string          `json:"adminrealm"`
	AdminUser           *[]string          `json:"adminuser"`
	PINode              *[]string          `json:"pinode"`
	Client              *[]string          `json:"client"`
	UserAgents          *[]string          `json:"user_agents"`
	UserCaseInsensitive *bool              `json:"user_case_insensitive"`
	Time                *string            `json:"time"`
	Conditions          *[]Condition       `json:"conditions"`
}

// Merge 浅合并：提供的键覆盖，未提供的保留；切片整体替换（拷贝，不共享底层数组）。
// Merge(old, Patch{}) == old。
func Merge(old Detail, p Patch) Detail {
	out := old
	out.Action = copyActionMap(old.Action)
	out.Realm = copySet(old.Realm)
	out.Resolver = copySet(old.Resolver)
	out.User = copySet(old.User)
	out.AdminRealm = copySet(old.AdminRealm)
	out.AdminUser = copySet(old.AdminUser)
	out.PINode = copySet(old.PINode)
	out.Client = copySet(old.Client)
	out.UserAgents = copySet(old.UserAgents)
	out.Conditions = append([]Condition(nil), old.Conditions...)

	if p.Scope != nil {
		out.Scope = *p.Scope
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Action != nil {
		out.Action = copyActionMap(*p.Action)
	}
	if p.Realm != nil {
		out.Realm = copySet(*p.Realm)
	}
	if p.Resolver != nil {
		out.Resolver = copySet(*p.Resolver)
	}
	if p.User != nil {
		out.User = copySet(*p.User)
	}
	if p.AdminRealm != nil {
		out.AdminRealm = copySet(*p.AdminRealm)
	}
	if p.AdminUser != nil {
		out.AdminUser = copySet(*p.AdminUser)
	}
	if p.PINode != nil {
		out.PINode = copySet(*p.PINode)
	}
	if p.Client != nil {
		out.Client = copySet(*p.Client)
	}
	if p.UserAgents != nil {
		out.UserAgents = copySet(*p.UserAgents)
	}
	if p.UserCaseInsensitive != nil {
		out.UserCaseInsensitive = *p.UserCaseInsensitive
	}
	if p.Time != nil {
		out.Time = *p.Time
	}
	if p.Conditions != nil {
		out.Conditions = append([]Condition(nil), (*p.Conditions)...)
	}
	return out
}

func copyActionMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySet(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

/********** 动作编辑 **********/

// AddAction：值非法则拒绝；重复添加等价更新。
// scope 为空时由第一个动作反推（见 ScopeOfAction）。
func (d *Detail) AddAction(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("action name required")
	}
	if d.Scope == "" {
		s := ScopeOfAction(name)
		if s == "" {
			return fmt.Errorf("unknown action %q", name)
		}
		d.Scope = s
	}
	det, ok := actionInScope(d.Scope, name)
	if !ok {
		return fmt.Errorf("action %q not in scope %q", name, d.Scope)
	}
	if !ActionValueOK(det, value) {
		return fmt.Errorf("invalid value %q for action %q", value, name)
	}
	if d.Action == nil {
		d.Action = make(map[string]string, 4)
	}
	d.Action[name] = value
	return nil
}

// UpdateAction：只允许改已存在的键
func (d *Detail) UpdateAction(name, value string) error {
	if d.Action == nil {
		return fmt.Errorf("action %q not present", name)
	}
	if _, ok := d.Action[name]; !ok {
		return fmt.Errorf("action %q not present", name)
	}
	det, ok := actionInScope(d.Scope, name)
	if ok && !ActionValueOK(det, value) {
		return fmt.Errorf("invalid value %q for action %q", value, name)
	}
	d.Action[name] = value
	return nil
}

// RemoveAction：幂等
func (d *Detail) RemoveAction(name string) {
	delete(d.Action, name)
}

// ChangeScope：新 scope 的目录完全不覆盖现有动作时——
// strict 模式拒绝，宽松模式清空动作表（服务端整体校验兜底）。
func (d *Detail) ChangeScope(newScope string, strict bool) error {
	if newScope == d.Scope {
		return nil
	}
	covered := false
	for name := range d.Action {
		if _, ok := actionInScope(newScope, name); ok {
			covered = true
			break
		}
	}
	if len(d.Action) > 0 && !covered {
		if strict {
			return fmt.Errorf("scope %q covers none of the current actions", newScope)
		}
		d.Action = map[string]string{}
	}
	d.Scope = newScope
	return nil
}

/********** 整体校验（持久化之前的唯一权威） **********/

// Validate 校验合并后的完整草稿。任何失败都不落库。
func (d *Detail) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("policy name required")
	}
	if d.Scope == "" {
		return fmt.Errorf("policy scope required")
	}
	if _, ok := defs[d.Scope]; !ok {
		return fmt.Errorf("unknown scope %q", d.Scope)
	}
	if len(d.Action) == 0 {
		return fmt.Errorf("policy needs at least one action")
	}
	for name, value := range d.Action {
		det, ok := actionInScope(d.Scope, name)
		if !ok {
			return fmt.Errorf("action %q not in scope %q", name, d.Scope)
		}
		if !ActionValueOK(det, value) {
			return fmt.Errorf("invalid value %q for action %q", value, name)
		}
	}
	// 集合字段逗号拼接入库，单项含逗号会破坏还原
	for _, set := range []struct {
		field string
		vals  []string
	}{
		{"realm", d.Realm}, {"resolver", d.Resolver}, {"user", d.User},
		{"adminrealm", d.AdminRealm}, {"adminuser", d.AdminUser},
		{"pinode", d.PINode}, {"user_agents", d.UserAgents},
	} {
		for _, v := range set.vals {
			if strings.Contains(v, ",") {
				return fmt.Errorf("%s entry %q must not contain a comma", set.field, v)
			}
		}
	}
	if !ValidTime(d.Time) {
		return fmt.Errorf("invalid time restriction %q", d.Time)
	}
	if bad := ValidClients(strings.Join(d.Client, ", ")); len(bad) > 0 {
		return fmt.Errorf("invalid client entries: %s", strings.Join(bad, ", "))
	}
	for _, c := range d.Conditions {
		if err := validateCondition(c); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	if !contains(ConditionSections, c.Section) {
		return fmt.Errorf("unknown condition section %q", c.Section)
	}
	if !contains(Comparators, c.Comparator) {
		return fmt.Errorf("unknown comparator %q", c.Comparator)
	}
	if c.HandleMissingData != "" && !contains(MissingDataHandling, c.HandleMissingData) {
		return fmt.Errorf("unknown missing-data handling %q", c.HandleMissingData)
	}
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("condition key required")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
