package model

import (
	"otpadm/otpadm/common/ttime"
)

// 事件处理器：某些 REST 事件（逗号列表）触发某 handler 的某 action
type Event struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	Event          string            `gorm:"column:event"`    // 逗号拼接，如 "token_init,token_assign"
	Handler        string            `gorm:"column:handler"`  // usernotification/logging/...
	Action         string            `gorm:"column:action"`   // handler 内的动作名
	Position       string            `gorm:"column:position"` // pre/post
	Ordering       int               `gorm:"column:ordering"`
	Active         bool              `gorm:"column:active"`
	Conditions     string            `gorm:"column:conditions"` // JSON
	Options        string            `gorm:"column:options"`    // JSON
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Event) TableName() string { return "event" }
