package model

import (
	"otpadm/otpadm/common/ttime"
)

// 策略行。集合字段（realm/resolver/user/...）逗号拼接存储，
// 因此 user/adminuser 等条目本身不允许含逗号；action 与 conditions 存 JSON 文本。
type Policy struct {
	Id                  int64             `gorm:"column:id"`
	Name                string            `gorm:"column:name"`
	Scope               string            `gorm:"column:scope"`
	Priority            int               `gorm:"column:priority"`
	Active              bool              `gorm:"column:active"`
	Description         string            `gorm:"column:description"`
	Action              string            `gorm:"column:action"` // JSON: {"name":"value",...}
	Realm               string            `gorm:"column:realm"`
	Resolver            string            `gorm:"column:resolver"`
	User                string            `gorm:"column:user"`
	AdminRealm          string            `gorm:"column:adminrealm"`
	AdminUser           string            `gorm:"column:adminuser"`
	PINode              string            `gorm:"column:pinode"`
	Client              string            `gorm:"column:client"`
	UserAgents          string            `gorm:"column:user_agents"`
	UserCaseInsensitive bool              `gorm:"column:user_case_insensitive"`
	Time                string            `gorm:"column:time"` // e.g. "Mon-Fri: 9-18"
	Conditions          string            `gorm:"column:conditions"`
	CreateDateTime      *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime      *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Policy) TableName() string { return "policy" }
