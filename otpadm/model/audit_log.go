package model

import "fmt"

// 审计行；写入按天分表 audit_log_YYYYMMDD
type AuditLog struct {
	Id            int64  `gorm:"column:id"`
	Time          int64  `gorm:"column:time"` // 毫秒；单列时间索引用于纯时间范围扫描
	Action        string `gorm:"column:action"`
	Success       bool   `gorm:"column:success"`
	Administrator string `gorm:"column:administrator"`
	User          string `gorm:"column:user"`
	Realm         string `gorm:"column:realm"`
	Serial        string `gorm:"column:serial"`
	Policies      string `gorm:"column:policies"`
	ClientIP      string `gorm:"column:client_ip"`
	UserAgent     string `gorm:"column:user_agent"`
	Info          string `gorm:"column:info"`
}

func AuditTable(day string) string {
	return fmt.Sprintf("audit_log_%s", day) // e.g. 20250906
}
