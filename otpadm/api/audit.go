package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"otpadm/otpadm/common"
)

/********** 审计查询 **********/

// GET /api/audit
// 支持筛选：action, administrator, user, realm, serial, success,
// start(毫秒), end(毫秒), page, pagesize
// 可选快照上界：cap_time(毫秒), cap_id
func (s *Server) listAudit(c *gin.Context) {
	page, size := common.GetPage(c)

	// --- 时间范围（毫秒），默认今天；超过 31 天 => 报错 ---
	startMs, _ := strconv.ParseInt(c.DefaultQuery("start", "0"), 10, 64)
	endMs, _ := strconv.ParseInt(c.DefaultQuery("end", "0"), 10, 64)
	if startMs <= 0 || endMs <= 0 || endMs < startMs {
		now := time.Now()
		begin := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		startMs = begin.UnixMilli()
		endMs = begin.Add(24*time.Hour - time.Millisecond).UnixMilli()
	}
	start := time.UnixMilli(startMs).In(time.Local)
	end := time.UnixMilli(endMs).In(time.Local)

	const maxRange = 31 * 24 * time.Hour
	if end.Sub(start) > maxRange {
		respErr(c, http.StatusBadRequest, codeBadRequest, "The time range cannot exceed 31 days")
		return
	}

	// --- 分表集合 ---
	allTables := collectAuditTablesByRange(start, end)
	existTables := filterExistingTablesGorm(s.App.AuditDB.GormDataSource, allTables)
	if len(existTables) == 0 {
		respOK(c, gin.H{"list": []any{}, "total": 0, "page": 1, "pagesize": size})
		return
	}

	// --- 参数解析 ---
	action := strings.TrimSpace(c.Query("action"))
	administrator := strings.TrimSpace(c.Query("administrator"))
	user := strings.TrimSpace(c.Query("user"))
	realm := strings.TrimSpace(c.Query("realm"))
	serial := strings.TrimSpace(c.Query("serial"))
	success := strings.TrimSpace(c.Query("success")) // ""/true/false

	capTime, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("cap_time", "0")), 10, 64)
	capID, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("cap_id", "0")), 10, 64)
	useCap := capTime > 0 && capID > 0

	// --- WHERE（每个分表子查询共享） ---
	whereParts := []string{"time BETWEEN ? AND ?"}
	args := []any{start.UnixMilli(), end.UnixMilli()}

	if action != "" {
		whereParts = append(whereParts, "action LIKE ?")
		args = append(args, "%"+action+"%")
	}
	if administrator != "" {
		whereParts = append(whereParts, "administrator LIKE ?")
		args = append(args, "%"+administrator+"%")
	}
	if user != "" {
		whereParts = append(whereParts, "user LIKE ?")
		args = append(args, "%"+user+"%")
	}
	if realm != "" {
		whereParts = append(whereParts, "realm = ?")
		args = append(args, realm)
	}
	if serial != "" {
		whereParts = append(whereParts, "serial LIKE ?")
		args = append(args, "%"+serial+"%")
	}
	if success == "true" || success == "false" {
		whereParts = append(whereParts, "success = ?")
		args = append(args, success == "true")
	}
	whereSQL := " WHERE " + strings.Join(whereParts, " AND ")

	const selectCols = "id, time, action, success, administrator, user, realm, serial, policies, client_ip, user_agent, info"

	// --- UNION ALL（按日分表）---
	unions := make([]string, 0, len(existTables))
	for _, t := range existTables {
		unions = append(unions, fmt.Sprintf("SELECT %s FROM `%s`%s", selectCols, t, whereSQL))
	}
	unionSQL := strings.Join(unions, " UNION ALL ")
	unionArgs := replicateArgs(args, len(unions))

	// --- 快照上界过滤（外层），与排序键一致：time DESC, id DESC ---
	outerCapWhere := ""
	outerCapArgs := make([]any, 0, 3)
	if useCap {
		outerCapWhere = " WHERE (time < ? OR (time = ? AND id <= ?))"
		outerCapArgs = append(outerCapArgs, capTime, capTime, capID)
	}

	countSQL := fmt.Sprintf("SELECT COUNT(1) AS total FROM ( %s ) AS allrows%s", unionSQL, outerCapWhere)
	var total int64
	if err := s.App.AuditDB.GormDataSource.Raw(countSQL, append(unionArgs, outerCapArgs...)...).Scan(&total).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if total == 0 {
		respOK(c, gin.H{"list": []any{}, "total": 0, "page": 1, "pagesize": size})
		return
	}

	// --- 纠正页码，避免越界 ---
	maxPage := int((total + int64(size) - 1) / int64(size))
	if page > maxPage {
		page = maxPage
	}
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}

	querySQL := fmt.Sprintf(
		"SELECT * FROM ( %s ) AS allrows%s ORDER BY time DESC, id DESC LIMIT ? OFFSET ?",
		unionSQL, outerCapWhere,
	)
	qArgs := append(append(unionArgs, outerCapArgs...), size, offset)

	type outRow struct {
		ID            int64  `gorm:"column:id" json:"id"`
		Time          int64  `gorm:"column:time" json:"time"`
		Action        string `gorm:"column:action" json:"action"`
		Success       bool   `gorm:"column:success" json:"success"`
		Administrator string `gorm:"column:administrator" json:"administrator"`
		User          string `gorm:"column:user" json:"user"`
		Realm         string `gorm:"column:realm" json:"realm"`
		Serial        string `gorm:"column:serial" json:"serial"`
		Policies      string `gorm:"column:policies" json:"policies"`
		ClientIP      string `gorm:"column:client_ip" json:"client_ip"`
		UserAgent     string `gorm:"column:user_agent" json:"user_agent"`
		Info          string `gorm:"column:info" json:"info"`
	}
	var rows []outRow
	if err := s.App.AuditDB.GormDataSource.Raw(querySQL, qArgs...).Scan(&rows).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	respOK(c, gin.H{"list": rows, "total": total, "page": page, "pagesize": size})
}

// GET /ws/audit —— 审计实时流（已鉴权后升级）
func (s *Server) auditFeed(c *gin.Context) {
	s.App.Hub.ServeWS(c.Writer, c.Request)
}
