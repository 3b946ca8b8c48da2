package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"otpadm/otpadm/app"
	"otpadm/otpadm/common/bruteguard"
	"otpadm/otpadm/model"
)

type Server struct {
	Guard *bruteguard.Guard
	App   *app.App
}

func New(a *app.App) *Server {
	return &Server{App: a, Guard: a.Guard}
}

/********** 响应信封 **********/
// 所有端点统一：{"result":{"status":bool,"value":...,"error":{"code","message"}}}

// 错误码：576=会话失效（前端以此触发重新登录），4031=权限不足，
// 400/500 与 HTTP 状态一致
const (
	codeSessionExpired = 576
	codeForbidden      = 4031
	codeBadRequest     = 400
	codeServerError    = 500
)

func respOK(c *gin.Context, value any) {
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"status": true, "value": value}})
}

func respErr(c *gin.Context, httpStatus, code int, msg string) {
	c.JSON(httpStatus, gin.H{"result": gin.H{
		"status": false,
		"error":  gin.H{"code": code, "message": msg},
	}})
}

func respAbort(c *gin.Context, httpStatus, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"result": gin.H{
		"status": false,
		"error":  gin.H{"code": code, "message": msg},
	}})
}

/********** 审计落账 **********/

// audit：每个变更类端点自记一条；写入走批量聚合器，推送走 ws，
// 可选再抄送 influx。失败静默（审计不阻塞业务）。
func (s *Server) audit(c *gin.Context, action string, success bool, serial, info string) {
	var admin string
	if v, ok := c.Get("username"); ok {
		admin, _ = v.(string)
	}
	entry := model.AuditLog{
		Time:          time.Now().UnixMilli(),
		Action:        action,
		Success:       success,
		Administrator: admin,
		Serial:        serial,
		ClientIP:      c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
		Info:          info,
	}
	day := time.Now().Format("20060102")
	if s.App.AuditAggregator != nil {
		s.App.AuditAggregator.AddAuditLogAsync(day, entry)
	}
	if s.App.Hub != nil {
		s.App.Hub.Broadcast(entry)
	}
	s.App.Exporter.Observe(entry)
}

/********** 分表工具 **********/

// 生成 start..end（含）之间每天的审计表名
func collectAuditTablesByRange(start, end time.Time) []string {
	var out []string
	for d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()); !d.After(end); d = d.Add(24 * time.Hour) {
		out = append(out, model.AuditTable(d.Format("20060102")))
	}
	return out
}

// 过滤存在的分表（GORM Migrator）
func filterExistingTablesGorm(db *gorm.DB, tables []string) []string {
	var existed []string
	for _, t := range tables {
		if db.Migrator().HasTable(t) {
			existed = append(existed, t)
		}
	}
	return existed
}

// 把一组参数复制 times 次（UNION 的每个子查询要一份相同参数）
func replicateArgs(args []any, times int) []any {
	out := make([]any, 0, len(args)*times)
	for i := 0; i < times; i++ {
		out = append(out, args...)
	}
	return out
}

// notFoundIsNull：详情查不到按“无内容可展示”处理，信封仍是 status=true
func notFoundIsNull(c *gin.Context, err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respOK(c, nil)
		return true
	}
	return false
}
