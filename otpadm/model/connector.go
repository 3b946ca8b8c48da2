package model

import (
	"otpadm/otpadm/common/ttime"
)

// CA 连接器（type: local/msca...），Config 存 JSON
type CAConnector struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	Type           string            `gorm:"column:type"`
	Config         string            `gorm:"column:config"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (CAConnector) TableName() string { return "caconnector" }

// 服务标识（service id），供 application-specific 口令用
type ServiceID struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	Description    string            `gorm:"column:description"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (ServiceID) TableName() string { return "serviceid" }

// 机器源（hosts 文件 / LDAP），Config 存 JSON
type MachineResolver struct {
	Id             int64             `gorm:"column:id"`
	Name           string            `gorm:"column:name"`
	Type           string            `gorm:"column:type"`
	Config         string            `gorm:"column:config"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (MachineResolver) TableName() string { return "machineresolver" }
