package model

import (
	"otpadm/otpadm/common/ttime"
)

// 管理端账号（非被管理的终端用户；终端用户来自 resolver）
type User struct {
	Id             int64             `gorm:"column:id"`
	Username       string            `gorm:"column:username"`
	PasswordSha256 string            `gorm:"column:password_sha256"`
	PasswordBcrypt string            `gorm:"column:password_bcrypt"`
	Realm          string            `gorm:"column:realm"`
	Status         string            `gorm:"column:status"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (User) TableName() string { return "user" }
