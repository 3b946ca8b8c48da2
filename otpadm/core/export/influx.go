package export

import (
	"crypto/tls"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"
	"otpadm/otpadm/common/config"
	"otpadm/otpadm/common/logx"
	"otpadm/otpadm/model"
)

var log = logx.New(logx.WithPrefix("export"))

/********** 审计外发（InfluxDB v2，可选） **********/

// Exporter 把审计条目异步写到 InfluxDB。未配置时为 nil，调用方判空。
type Exporter struct {
	client influxdb2.Client
	write  influxapi.WriteAPI
}

// NewExporter：base_url 或 token 为空则视为未启用，返回 nil
func NewExporter(cfg config.InfluxDB2Config) *Exporter {
	if cfg.BaseURL == "" || cfg.Token == "" {
		return nil
	}
	opts := influxdb2.DefaultOptions().SetBatchSize(100).SetFlushInterval(2000)
	if cfg.InsecureSkipVerify {
		opts = opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	client := influxdb2.NewClientWithOptions(cfg.BaseURL, cfg.Token, opts)
	w := client.WriteAPI(cfg.Org, cfg.Bucket)

	e := &Exporter{client: client, write: w}
	// 写失败只记日志，不影响主流程
	go func() {
		for err := range w.Errors() {
			log.Warnf("influx write: %v", err)
		}
	}()
	log.Infof("influx export enabled -> %s org=%s bucket=%s", cfg.BaseURL, cfg.Org, cfg.Bucket)
	return e
}

// Observe 投递一条审计记录（非阻塞，客户端内部批量）
func (e *Exporter) Observe(entry model.AuditLog) {
	if e == nil {
		return
	}
	p := influxdb2.NewPoint("audit",
		map[string]string{
			"action":  entry.Action,
			"success": strconv.FormatBool(entry.Success),
			"realm":   entry.Realm,
		},
		map[string]interface{}{
			"administrator": entry.Administrator,
			"user":          entry.User,
			"serial":        entry.Serial,
			"client_ip":     entry.ClientIP,
			"user_agent":    entry.UserAgent,
			"policies":      entry.Policies,
			"info":          entry.Info,
		},
		time.UnixMilli(entry.Time),
	)
	e.write.WritePoint(p)
}

// Close 冲掉缓冲并关闭客户端
func (e *Exporter) Close() {
	if e == nil {
		return
	}
	e.write.Flush()
	e.client.Close()
}
