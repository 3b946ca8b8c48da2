package config

import (
	"errors"
	"gopkg.in/yaml.v3"
	"net/url"
	"os"
	"otpadm/otpadm/common"
	"otpadm/otpadm/common/logx"
	"otpadm/otpadm/common/subscription"
	"path/filepath"
	"strings"
)

type DBPoolCfg struct {
	MaxOpen        int `yaml:"max_open"`
	MaxIdle        int `yaml:"max_idle"`
	MaxLifetimeSec int `yaml:"max_lifetime_sec"`
}

type DBCfg struct {
	Driver string    `yaml:"driver"`
	DSN    string    `yaml:"dsn"`
	Pool   DBPoolCfg `yaml:"pool"`
}

type DualDBCfg struct {
	Master DBCfg `yaml:"master"`
	Audit  DBCfg `yaml:"audit"`
}

type AdminAuth struct {
	AdminIDs  []int  `yaml:"admin_ids"`
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // 分钟
}

type TLSConfig struct {
	Cert     string `yaml:"cert"`
	Key      string `yaml:"key"`
	SniGuard string `yaml:"sniGuard"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type PolicyCfg struct {
	// 开启后：改 scope 时若新 scope 不覆盖任何已有 action 则拒绝而非清空
	StrictScope bool `yaml:"strict_scope"`
}

type InfluxDB2Config struct {
	BaseURL            string `yaml:"base_url"`
	Token              string `yaml:"token"`
	Org                string `yaml:"org"`
	Bucket             string `yaml:"bucket"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type Config struct {
	DB           DualDBCfg       `yaml:"db"`
	Admin        AdminAuth       `yaml:"admin"`
	TLSConfig    TLSConfig       `yaml:"tls"`
	Logging      Logging         `yaml:"logging"`
	Policy       PolicyCfg       `yaml:"policy"`
	InfluxDB2    InfluxDB2Config `yaml:"influxdb2"`
	Subscription common.SubscriptionCfg
	A            string `yaml:"a"` // 订阅串（base64url 信封）
}

// ====== 默认 DSN（当 DSN 为空时才生效） ======
func defaultSQLiteDSNs() (masterDSN, auditDSN string) {
	base := "/var/lib/otpadm"
	if common.IsDesktop() {
		base = "./lib"
	}

	// === master：默认 4K 页 ===
	m := url.Values{}
	m.Set("_pragma_busy_timeout", "5000")
	m.Set("_pragma_journal_mode", "WAL")
	m.Set("_pragma_synchronous", "NORMAL")
	m.Set("_pragma_foreign_keys", "ON")

	// === audit：32K 页，日志型写入吃大页 ===
	a := url.Values{}
	a.Set("_pragma_page_size", "32768")
	a.Set("_pragma_busy_timeout", "5000")
	a.Set("_pragma_journal_mode", "WAL")
	a.Set("_pragma_synchronous", "NORMAL")
	a.Set("_pragma_foreign_keys", "ON")

	master := filepath.ToSlash(filepath.Join(base, "master.db"))
	audit := filepath.ToSlash(filepath.Join(base, "audit.db"))

	return "file:" + master + "?" + m.Encode(),
		"file:" + audit + "?" + a.Encode()
}

// ensureDirForFileDSN 确保 file:DSN 的目录存在（对相对/绝对路径都可）
func ensureDirForFileDSN(dsn string) error {
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i] // 去掉查询参数
	}
	dir := filepath.Dir(p)
	return os.MkdirAll(dir, 0o755)
}

var log = logx.New(logx.WithPrefix("config"))

func Load(p string) (*Config, string, error) {
	// 先读指定路径，失败则读 /etc/otpadm/config.yaml
	b, err := os.ReadFile(p)
	if err != nil {
		p = "/etc/otpadm/config.yaml"
		b, err = os.ReadFile(p)
		if err != nil {
			log.Errorf("open ./config/config.yaml: no such file or directory")
			return nil, p, err
		}
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, p, err
	}

	// 两个库缺省 sqlite；mysql 需要显式给 driver + dsn
	if c.DB.Master.Driver == "" {
		c.DB.Master.Driver = "sqlite"
	}
	if c.DB.Audit.Driver == "" {
		c.DB.Audit.Driver = "sqlite"
	}
	masterDSN, auditDSN := defaultSQLiteDSNs()
	if c.DB.Master.DSN == "" {
		c.DB.Master.DSN = masterDSN
	}
	if c.DB.Audit.DSN == "" {
		c.DB.Audit.DSN = auditDSN
	}

	// 确保目录存在
	if err := ensureDirForFileDSN(c.DB.Master.DSN); err != nil {
		return nil, p, err
	}
	if err := ensureDirForFileDSN(c.DB.Audit.DSN); err != nil {
		return nil, p, err
	}

	if len(c.Admin.AdminIDs) == 0 {
		c.Admin.AdminIDs = []int{1}
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 60 * 2
	}
	if c.A != "" {
		ok, s, sp := subscription.VerifySubscriptionEd25519(c.A)
		if !ok {
			return nil, p, errors.New("subscription invalid " + s)
		}
		c.Subscription = *sp
	}
	return &c, p, nil
}
