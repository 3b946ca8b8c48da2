package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"otpadm/otpadm/common"
)

// 仅用原生 SQL 完成初始化（建表/索引/触发器/种子数据）
// driver: "mysql" | "sqlite"
func MigrateMasterSQL(g *gorm.DB, driver string) error {
	switch strings.ToLower(driver) {
	case "mysql":
		if err := createTablesMySQL(g); err != nil {
			return fmt.Errorf("mysql create tables: %w", err)
		}
		if err := seedAdmin(g); err != nil {
			return fmt.Errorf("mysql seed admin: %w", err)
		}
		return nil

	case "sqlite":
		if err := createTablesSQLite(g); err != nil {
			return fmt.Errorf("sqlite create tables: %w", err)
		}
		if err := ensureSQLiteTimeTriggers(g); err != nil {
			return fmt.Errorf("sqlite time triggers: %w", err)
		}
		if err := seedAdmin(g); err != nil {
			return fmt.Errorf("sqlite seed admin: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
}

/* ------------------------ MySQL：一次性 CREATE TABLE（含所有索引） ------------------------ */

func createTablesMySQL(g *gorm.DB) error {
	return nil
}

func seedAdmin(g *gorm.DB) error {
	var cnt int64
	if err := g.Raw(`SELECT COUNT(*) FROM user`).Scan(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	pass := "otpadm-first-run"
	bc, err := common.HashBcrypt(pass)
	if err != nil {
		return err
	}
	return g.Exec(`INSERT INTO user (username,password_sha256,password_bcrypt,realm,status) VALUES (?,?,?,'',?)`,
		"admin", common.HashUP(pass), bc, "enabled").Error
}

/* ------------------------ SQLite：CREATE TABLE + 触发器（时间维护） ------------------------ */

func createTablesSQLite(g *gorm.DB) error {
	stmts := []string{
		// user（时间列 TEXT，用触发器写 localtime）
		`CREATE TABLE IF NOT EXISTS user (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_sha256 TEXT NOT NULL,
			password_bcrypt TEXT NOT NULL DEFAULT '',
			realm TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'enabled',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_user_status ON user(status);`,
		`CREATE INDEX IF NOT EXISTS idx_user_realm  ON user(realm);`,

		// policy：集合字段逗号拼接，action / conditions 存 JSON 文本
		`CREATE TABLE IF NOT EXISTS policy (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			scope TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 1,
			active INTEGER NOT NULL DEFAULT 1,
			description TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '{}',
			realm TEXT NOT NULL DEFAULT '',
			resolver TEXT NOT NULL DEFAULT '',
			user TEXT NOT NULL DEFAULT '',
			adminrealm TEXT NOT NULL DEFAULT '',
			adminuser TEXT NOT NULL DEFAULT '',
			pinode TEXT NOT NULL DEFAULT '',
			client TEXT NOT NULL DEFAULT '',
			user_agents TEXT NOT NULL DEFAULT '',
			user_case_insensitive INTEGER NOT NULL DEFAULT 0,
			time TEXT NOT NULL DEFAULT '',
			conditions TEXT NOT NULL DEFAULT '[]',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_scope    ON policy(scope);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_active   ON policy(active);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_priority ON policy(priority);`,

		// resolver / realm
		`CREATE TABLE IF NOT EXISTS resolver (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resolver_type ON resolver(type);`,

		`CREATE TABLE IF NOT EXISTS realm (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			is_default INTEGER NOT NULL DEFAULT 0,
			resolvers TEXT NOT NULL DEFAULT '[]',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_realm_default ON realm(is_default);`,

		// caconnector / serviceid / machineresolver
		`CREATE TABLE IF NOT EXISTS caconnector (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS serviceid (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS machineresolver (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			create_date_time TEXT,
			update_date_time TEXT
		);`,

		// token / container
		`CREATE TABLE IF NOT EXISTS token (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			otpkey_sha256 TEXT NOT NULL DEFAULT '',
			failcount INTEGER NOT NULL DEFAULT 0,
			maxfail INTEGER NOT NULL DEFAULT 10,
			username TEXT NOT NULL DEFAULT '',
			realm TEXT NOT NULL DEFAULT '',
			container_serial TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_token_type      ON token(type);`,
		`CREATE INDEX IF NOT EXISTS idx_token_user      ON token(username);`,
		`CREATE INDEX IF NOT EXISTS idx_token_realm     ON token(realm);`,
		`CREATE INDEX IF NOT EXISTS idx_token_container ON token(container_serial);`,

		`CREATE TABLE IF NOT EXISTS container (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			realm TEXT NOT NULL DEFAULT '',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_container_type ON container(type);`,

		// event handler
		`CREATE TABLE IF NOT EXISTS event (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			event TEXT NOT NULL DEFAULT '',
			handler TEXT NOT NULL,
			action TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT 'post',
			ordering INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			conditions TEXT NOT NULL DEFAULT '{}',
			options TEXT NOT NULL DEFAULT '{}',
			create_date_time TEXT,
			update_date_time TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_event_active   ON event(active);`,
		`CREATE INDEX IF NOT EXISTS idx_event_handler  ON event(handler);`,
		`CREATE INDEX IF NOT EXISTS idx_event_ordering ON event(ordering);`,
	}
	for _, sql := range stmts {
		if err := g.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}

// ensureSQLiteTimeTriggers：自动给所有包含 create_date_time / update_date_time 的表打“本地时间”触发器
func ensureSQLiteTimeTriggers(g *gorm.DB) error {
	type Tbl struct{ Name string }
	var tbls []Tbl
	if err := g.Raw(`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`).Scan(&tbls).Error; err != nil {
		return err
	}

	for _, t := range tbls {
		// 只取我们需要的两列，避免 GORM 去解析 dflt_value 之类的多类型字段
		type Col struct {
			Name string `gorm:"column:name"`
			PK   int    `gorm:"column:pk"`
		}
		var cols []Col
		if err := g.Raw(fmt.Sprintf(`PRAGMA table_info(%q);`, t.Name)).Scan(&cols).Error; err != nil {
			return err
		}

		hasCreate, hasUpdate := false, false
		pkCol := ""
		for _, c := range cols {
			n := strings.ToLower(c.Name)
			if n == "create_date_time" {
				hasCreate = true
			}
			if n == "update_date_time" {
				hasUpdate = true
			}
			if c.PK > 0 && pkCol == "" {
				pkCol = c.Name
			}
		}
		if !hasCreate && !hasUpdate {
			continue
		}

		cond := "rowid = NEW.rowid"
		if pkCol != "" {
			cond = fmt.Sprintf("%q = NEW.%q", pkCol, pkCol)
		}

		ai := fmt.Sprintf("%s_ai_ts", t.Name)
		au := fmt.Sprintf("%s_au_ts", t.Name)

		setInsert := []string{}
		if hasCreate {
			setInsert = append(setInsert, "create_date_time = COALESCE(NEW.create_date_time, datetime('now','localtime'))")
		}
		if hasUpdate {
			setInsert = append(setInsert, "update_date_time = COALESCE(NEW.update_date_time, datetime('now','localtime'))")
		}
		if len(setInsert) == 0 {
			setInsert = append(setInsert, "rowid=rowid")
		}

		aiSQL := fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS %s
AFTER INSERT ON %q
FOR EACH ROW
BEGIN
  UPDATE %q
     SET %s
   WHERE %s;
END;`, ai, t.Name, t.Name, strings.Join(setInsert, ", "), cond)

		setUpdate := "rowid=rowid"
		if hasUpdate {
			setUpdate = "update_date_time = datetime('now','localtime')"
		}
		auSQL := fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS %s
AFTER UPDATE ON %q
FOR EACH ROW
BEGIN
  UPDATE %q
     SET %s
   WHERE %s;
END;`, au, t.Name, t.Name, setUpdate, cond)

		if err := g.Exec(aiSQL).Error; err != nil {
			return fmt.Errorf("create trigger %s: %w", ai, err)
		}
		if err := g.Exec(auSQL).Error; err != nil {
			return fmt.Errorf("create trigger %s: %w", au, err)
		}
	}
	return nil
}
