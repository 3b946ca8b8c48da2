package model

import (
	"otpadm/otpadm/common/ttime"
)

type Token struct {
	Id              int64             `gorm:"column:id"`
	Serial          string            `gorm:"column:serial"`
	Type            string            `gorm:"column:type"` // hotp/totp/spass/...
	Active          bool              `gorm:"column:active"`
	OTPKeySha256    string            `gorm:"column:otpkey_sha256"` // 不回传种子，只存摘要
	Failcount       int               `gorm:"column:failcount"`
	MaxFail         int               `gorm:"column:maxfail"`
	Username        string            `gorm:"column:username"`
	Realm           string            `gorm:"column:realm"`
	ContainerSerial string            `gorm:"column:container_serial"`
	Description     string            `gorm:"column:description"`
	CreateDateTime  *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime  *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Token) TableName() string { return "token" }

type Container struct {
	Id             int64             `gorm:"column:id"`
	Serial         string            `gorm:"column:serial"`
	Type           string            `gorm:"column:type"` // generic/smartphone/yubikey
	Description    string            `gorm:"column:description"`
	Realm          string            `gorm:"column:realm"`
	CreateDateTime *ttime.TimeFormat `gorm:"column:create_date_time"`
	UpdateDateTime *ttime.TimeFormat `gorm:"column:update_date_time"`
}

func (Container) TableName() string { return "container" }
