package policy

import (
	"strings"

	json "github.com/goccy/go-json"
	"otpadm/otpadm/model"
)

/********** 入库/出库（wire form） **********/

// ToRecord：集合逗号拼接；action 与 conditions 存 JSON
func ToRecord(d Detail) (model.Policy, error) {
	actJSON, err := json.Marshal(d.Action)
	if err != nil {
		return model.Policy{}, err
	}
	condJSON, err := json.Marshal(d.Conditions)
	if err != nil {
		return model.Policy{}, err
	}
	return model.Policy{
		Name:                d.Name,
		Scope:               d.Scope,
		Priority:            d.Priority,
		Active:              d.Active,
		Description:         d.Description,
		Action:              string(actJSON),
		Realm:               joinSet(d.Realm),
		Resolver:            joinSet(d.Resolver),
		User:                joinSet(d.User),
		AdminRealm:          joinSet(d.AdminRealm),
		AdminUser:           joinSet(d.AdminUser),
		PINode:              joinSet(d.PINode),
		Client:              joinSet(d.Client),
		UserAgents:          joinSet(d.UserAgents),
		UserCaseInsensitive: d.UserCaseInsensitive,
		Time:                d.Time,
		Conditions:          string(condJSON),
	}, nil
}

// FromRecord：ToRecord 的逆；条件 6 元组的顺序保持不变
func FromRecord(m model.Policy) (Detail, error) {
	d := Detail{
		Name:                m.Name,
		Scope:               m.Scope,
		Priority:            m.Priority,
		Active:              m.Active,
		Description:         m.Description,
		Realm:               splitSet(m.Realm),
		Resolver:            splitSet(m.Resolver),
		User:                splitSet(m.User),
		AdminRealm:          splitSet(m.AdminRealm),
		AdminUser:           splitSet(m.AdminUser),
		PINode:              splitSet(m.PINode),
		Client:              splitSet(m.Client),
		UserAgents:          splitSet(m.UserAgents),
		UserCaseInsensitive: m.UserCaseInsensitive,
		Time:                m.Time,
	}
	if m.Action != "" {
		if err := json.Unmarshal([]byte(m.Action), &d.Action); err != nil {
			return Detail{}, err
		}
	}
	if m.Conditions != "" {
		if err := json.Unmarshal([]byte(m.Conditions), &d.Conditions); err != nil {
			return Detail{}, err
		}
	}
	return d, nil
}

func joinSet(vals []string) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ",")
}

func splitSet(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
