package app

import (
	"context"
	"fmt"
	"time"

	"otpadm/otpadm/common/bruteguard"
	"otpadm/otpadm/common/config"
	"otpadm/otpadm/common/logx"
	"otpadm/otpadm/core/export"
	"otpadm/otpadm/core/feed"
	"otpadm/otpadm/db"
	"otpadm/otpadm/db/dao"
	"otpadm/otpadm/model"
)

type App struct {
	Cfg     *config.Config
	CfgPath string

	MasterDB *db.DB
	AuditDB  *db.DB

	AuditAggregator *dao.AuditAggregator

	Guard *bruteguard.Guard
	Day   string

	// 审计实时流与外部导出
	Hub      *feed.Hub
	Exporter *export.Exporter

	Ctx    context.Context
	Cancel context.CancelFunc

	// ★ 组件级日志
	Log *logx.Logger
}

var log = logx.New(logx.WithPrefix("app"))

func New(cfgPath string) (*App, error) {
	cfg, cfgP, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &App{
		Cfg:     cfg,
		CfgPath: cfgP,
		Log:     log, // ★ 组件 logger（等级跟随全局）
	}
	logx.SetLevelString(a.Cfg.Logging.Level)
	a.Log.Infof("config loaded from %s", cfgPath)

	// master 库
	master := cfg.DB.Master
	a.Log.Debugf("opening master db: driver=%s", master.Driver)
	masterDB, err := db.OpenGorm(master.Driver, master.DSN, master.Pool)
	if err != nil {
		return nil, fmt.Errorf("open master db: %w", err)
	}
	if err := db.MigrateMasterSQL(masterDB.GormDataSource, masterDB.Driver); err != nil {
		return nil, fmt.Errorf("auto-migrate master: %w", err)
	}

	a.MasterDB = masterDB
	a.Log.Infof("master db connected (driver=%s)", master.Driver)

	// 审计库（按日分表）
	auditCfg := cfg.DB.Audit
	a.Log.Debugf("opening audit db: driver=%s", auditCfg.Driver)
	auditDB, err := db.OpenGorm(auditCfg.Driver, auditCfg.DSN, auditCfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	day := time.Now().Format("20060102")
	if err := db.EnsureAuditLogTable(auditDB, day); err != nil {
		return nil, fmt.Errorf("ensure audit table for %s: %w", day, err)
	}
	a.Day = day
	a.AuditDB = auditDB
	a.AuditAggregator = dao.NewAuditAggregator(
		a.AuditDB.GormDataSource,
		a.AuditDB.Driver,
		model.AuditTable,
		func(d string) error { return db.EnsureAuditLogTable(a.AuditDB, d) },
		1*time.Second,
		1000,
	)
	a.AuditAggregator.Start()
	a.Log.Infof("audit db connected (driver=%s), audit aggregator started (batch=1000, flush=1s, day=%s)", auditCfg.Driver, day)

	// 审计实时流
	a.Hub = feed.NewHub()

	// 可选：InfluxDB2 外部导出
	a.Exporter = export.NewExporter(cfg.InfluxDB2)
	if a.Exporter != nil {
		a.Log.Infof("influxdb2 exporter enabled (url=%s)", cfg.InfluxDB2.BaseURL)
	}

	// 暴力防护
	a.Guard = bruteguard.New(bruteguard.Config{
		Window:      10 * time.Minute,
		MaxFails:    5,
		Cooldown:    30 * time.Minute,
		BaseBackoff: 3 * time.Second,
		MaxBackoff:  1 * time.Minute,
		GCInterval:  1 * time.Minute,
		AliveFor:    12 * time.Hour,
	})
	a.Log.Infof("bruteguard ready (maxFails=%d, cooldown=%s, baseBackoff=%s, maxBackoff=%s)", 5, 30*time.Minute, 3*time.Second, 1*time.Minute)

	return a, nil
}

/* -------------------- 启动 & 日切 -------------------- */

func (a *App) Start() error {
	a.Ctx, a.Cancel = context.WithCancel(context.Background())
	go a.watchDayRoll(1 * time.Minute)
	a.Log.Infof("day-roll watcher started (interval=1m)")
	return nil
}

// watchDayRoll 跨天时预建当日审计分表，避免首条写入等建表
func (a *App) watchDayRoll(interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-a.Ctx.Done():
			a.Log.Debugf("day-roll watcher exit")
			return
		case <-tk.C:
			day := time.Now().Format("20060102")
			if day == a.Day {
				continue
			}
			if err := db.EnsureAuditLogTable(a.AuditDB, day); err != nil {
				a.Log.Errorf("ensure audit table for %s: %v", day, err)
				continue
			}
			a.Log.Infof("audit table rolled to %s", day)
			a.Day = day
		}
	}
}

/* -------------------- 关闭 -------------------- */

func (a *App) Stop() error {
	if a.AuditAggregator != nil {
		a.AuditAggregator.Shutdown()
		a.Log.Infof("audit aggregator stopped")
	}
	if a.Hub != nil {
		a.Hub.Shutdown()
		a.Log.Infof("audit feed hub stopped")
	}
	if a.Exporter != nil {
		a.Exporter.Close()
		a.Log.Infof("influxdb2 exporter stopped")
	}
	if a.Cancel != nil {
		a.Cancel()
	}
	a.Log.Infof("app stopped")
	return nil
}
