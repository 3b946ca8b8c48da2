package db

import (
	"fmt"

	"otpadm/otpadm/model"
)

// EnsureAuditLogTable：按日创建审计分表（完全 SQL，一次性建齐索引）
// day 示例："20250911"
func EnsureAuditLogTable(d *DB, day string) error {
	tbl := model.AuditTable(day)

	switch d.Driver {
	case "mysql":
		// MySQL：索引在 CREATE TABLE 内一次性写全
		create := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  time BIGINT NOT NULL,
  action VARCHAR(64) NOT NULL,
  success TINYINT NOT NULL DEFAULT 0,
  administrator VARCHAR(255),
  user VARCHAR(255),
  realm VARCHAR(255),
  serial VARCHAR(64),
  policies VARCHAR(512),
  client_ip VARCHAR(64),
  user_agent VARCHAR(255),
  info TEXT,
  KEY idx_%[1]s_time (time),
  KEY idx_%[1]s_action_time (action, time),
  KEY idx_%[1]s_admin_time (administrator, time),
  KEY idx_%[1]s_user_time (user, time),
  KEY idx_%[1]s_realm_time (realm, time),
  KEY idx_%[1]s_serial_time (serial, time),
  KEY idx_%[1]s_success_time (success, time)
);`, tbl)
		return d.GormDataSource.Exec(create).Error

	case "sqlite", "sqlite3":
		// SQLite：先建表，再用 IF NOT EXISTS 建索引
		create := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  time BIGINT NOT NULL,
  action TEXT NOT NULL,
  success INTEGER NOT NULL DEFAULT 0,
  administrator TEXT,
  user TEXT,
  realm TEXT,
  serial TEXT,
  policies TEXT,
  client_ip TEXT,
  user_agent TEXT,
  info TEXT
);`, tbl)
		if err := d.GormDataSource.Exec(create).Error; err != nil {
			return err
		}

		idxes := []struct {
			name string
			cols string
		}{
			{fmt.Sprintf("idx_%s_time", tbl), "time"},
			{fmt.Sprintf("idx_%s_action_time", tbl), "action, time"},
			{fmt.Sprintf("idx_%s_admin_time", tbl), "administrator, time"},
			{fmt.Sprintf("idx_%s_user_time", tbl), "user, time"},
			{fmt.Sprintf("idx_%s_realm_time", tbl), "realm, time"},
			{fmt.Sprintf("idx_%s_serial_time", tbl), "serial, time"},
			{fmt.Sprintf("idx_%s_success_time", tbl), "success, time"},
		}
		for _, ix := range idxes {
			sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);", ix.name, tbl, ix.cols)
			if err := d.GormDataSource.Exec(sql).Error; err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}
