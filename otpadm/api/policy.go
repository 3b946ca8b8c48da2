package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"otpadm/otpadm/common"
	"otpadm/otpadm/core/listview"
	"otpadm/otpadm/core/policy"
	"otpadm/otpadm/model"
)

/********** 策略 CRUD **********/

// 列表页参与过滤/自由文本匹配的列
var policyListCols = []string{"name", "scope", "description", "realm", "user"}

// GET /api/policy?filter=&sortby=&sortdir=&page=&pagesize=
func (s *Server) listPolicy(c *gin.Context) {
	var recs []model.Policy
	if err := s.App.MasterDB.GormDataSource.Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	details := make(map[string]policy.Detail, len(recs))
	rows := make([]listview.Row, 0, len(recs))
	for _, m := range recs {
		d, err := policy.FromRecord(m)
		if err != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, "corrupt policy record "+m.Name+": "+err.Error())
			return
		}
		details[d.Name] = d
		rows = append(rows, listview.Row{
			"name":        d.Name,
			"scope":       d.Scope,
			"priority":    strconv.Itoa(d.Priority),
			"active":      strconv.FormatBool(d.Active),
			"description": d.Description,
			"realm":       strings.Join(d.Realm, ","),
			"user":        strings.Join(d.User, ","),
		})
	}

	q := listview.ParseQuery(c.Query("filter"))
	rows = listview.Apply(rows, policyListCols, q)
	listview.Sort(rows, c.DefaultQuery("sortby", "name"), c.Query("sortdir"))

	total := len(rows)
	page, size := common.GetPage(c)
	rows = listview.Page(rows, page, size)

	out := make([]policy.Detail, 0, len(rows))
	for _, r := range rows {
		out = append(out, details[r["name"]])
	}
	respOK(c, gin.H{"list": out, "total": total, "page": page, "pagesize": size})
}

// GET /api/policy/:name —— 查不到不是错误，status=true + null
func (s *Server) getPolicy(c *gin.Context) {
	name := c.Param("name")
	var m model.Policy
	err := s.App.MasterDB.GormDataSource.Where("name = ?", name).Take(&m).Error
	if notFoundIsNull(c, err) {
		return
	}
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	d, err := policy.FromRecord(m)
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, d)
}

// POST /api/policy —— 草稿合并：取旧值（如存在）→ 指针补丁合并 → 整体校验 → 落库
func (s *Server) upsertPolicy(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		policy.Patch
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "policy name required")
		return
	}

	var old policy.Detail
	exists := false
	var rec model.Policy
	err := s.App.MasterDB.GormDataSource.Where("name = ?", name).Take(&rec).Error
	switch {
	case err == nil:
		old, err = policy.FromRecord(rec)
		if err != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
			return
		}
		exists = true
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 新建：合并基底是零值草稿
	default:
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	// scope 变更且没有同时重写 action：先走覆盖检查（strict 拒绝 / loose 重置）
	if exists && req.Scope != nil && *req.Scope != old.Scope && req.Action == nil {
		if err := old.ChangeScope(*req.Scope, s.App.Cfg.Policy.StrictScope); err != nil {
			respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		req.Scope = nil
	}

	merged := policy.Merge(old, req.Patch)
	merged.Name = name
	// scope 未给时由首个动作反查（首次添加动作时的自动选 scope）
	if merged.Scope == "" {
		for n := range merged.Action {
			if sc := policy.ScopeOfAction(n); sc != "" {
				merged.Scope = sc
				break
			}
		}
	}
	if err := merged.Validate(); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	out, err := policy.ToRecord(merged)
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	g := s.App.MasterDB.GormDataSource
	if exists {
		err = g.Model(&model.Policy{}).Where("name = ?", name).Updates(map[string]any{
			"scope":                 out.Scope,
			"priority":              out.Priority,
			"active":                out.Active,
			"description":           out.Description,
			"action":                out.Action,
			"realm":                 out.Realm,
			"resolver":              out.Resolver,
			"user":                  out.User,
			"adminrealm":            out.AdminRealm,
			"adminuser":             out.AdminUser,
			"pinode":                out.PINode,
			"client":                out.Client,
			"user_agents":           out.UserAgents,
			"user_case_insensitive": out.UserCaseInsensitive,
			"time":                  out.Time,
			"conditions":            out.Conditions,
		}).Error
	} else {
		err = g.Create(&out).Error
	}
	if err != nil {
		s.audit(c, "policy_write", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "policy_write", true, "", name)
	respOK(c, merged)
}

// DELETE /api/policy/:name
func (s *Server) deletePolicy(c *gin.Context) {
	name := c.Param("name")
	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.Policy{})
	if tx.Error != nil {
		s.audit(c, "policy_delete", false, "", name+": "+tx.Error.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "policy_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}

// POST /api/policy/enable/:name  /  POST /api/policy/disable/:name
func (s *Server) setPolicyActive(active bool) gin.HandlerFunc {
	action := "policy_disable"
	if active {
		action = "policy_enable"
	}
	return func(c *gin.Context) {
		name := c.Param("name")
		tx := s.App.MasterDB.GormDataSource.Model(&model.Policy{}).
			Where("name = ?", name).Update("active", active)
		if tx.Error != nil {
			s.audit(c, action, false, "", name+": "+tx.Error.Error())
			respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
			return
		}
		if tx.RowsAffected == 0 {
			respOK(c, nil)
			return
		}
		s.audit(c, action, true, "", name)
		respOK(c, true)
	}
}

// GET /api/policy/defs?scope=&filter=&added=a,b,c
// 返回目录（按 scope 过滤后的动作组）+ 条件词表
func (s *Server) policyDefs(c *gin.Context) {
	scope := c.Query("scope")
	filter := c.Query("filter")

	added := map[string]string{}
	for _, n := range strings.Split(c.Query("added"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			added[n] = ""
		}
	}

	out := gin.H{
		"scopes":              policy.Scopes(),
		"sections":            policy.ConditionSections,
		"comparators":         policy.Comparators,
		"handle_missing_data": policy.MissingDataHandling,
	}
	if scope != "" {
		out["groups"] = policy.FilteredActionGroups(scope, added, filter)
	}
	respOK(c, out)
}
