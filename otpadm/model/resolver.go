package model

import (
	"otpadm/otpadm/common/ttime"
)

// 用户源（passwdresolver / sqlresolver / ldapresolver...），Config 存 JSON
type Resolver struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	Type           string            `gorm:"column:type"`
	Config         string            `gorm:"column:config"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Resolver) TableName() string { return "resolver" }

// realm：挂若干 resolver（带优先级），JSON 存储
type Realm struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	IsDefault      bool              `gorm:"column:is_default"`
	Resolvers      string            `gorm:"column:resolvers"` // JSON: [{"name":"r1","priority":1},...]
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Realm) TableName() string { return "realm" }
