package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"otpadm/otpadm/model"
)

/********** 用户源（resolver） **********/

var resolverTypes = []string{"passwdresolver", "sqlresolver", "ldapresolver", "httpresolver", "scimresolver"}

func knownResolverType(t string) bool {
	for _, v := range resolverTypes {
		if v == t {
			return true
		}
	}
	return false
}

// GET /api/resolver
func (s *Server) listResolver(c *gin.Context) {
	var recs []model.Resolver
	if err := s.App.MasterDB.GormDataSource.Order("name").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs)})
}

// GET /api/resolver/:name
func (s *Server) getResolver(c *gin.Context) {
	var m model.Resolver
	err := s.App.MasterDB.GormDataSource.Where("name = ?", c.Param("name")).Take(&m).Error
	if notFoundIsNull(c, err) {
		return
	}
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, m)
}

// POST /api/resolver  {name,type,config}
func (s *Server) upsertResolver(c *gin.Context) {
	var req struct {
		Name   string         `json:"name"`
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.Contains(name, ",") {
		respErr(c, http.StatusBadRequest, codeBadRequest, "resolver name required (no comma)")
		return
	}
	if !knownResolverType(req.Type) {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown resolver type: "+req.Type)
		return
	}
	cfgJSON, err := json.Marshal(req.Config)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	g := s.App.MasterDB.GormDataSource
	var existing model.Resolver
	err = g.Where("name = ?", name).Take(&existing).Error
	switch {
	case err == nil:
		err = g.Model(&model.Resolver{}).Where("name = ?", name).
			Updates(map[string]any{"type": req.Type, "config": string(cfgJSON)}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = g.Create(&model.Resolver{Name: name, Type: req.Type, Config: string(cfgJSON)}).Error
	}
	if err != nil {
		s.audit(c, "resolver_write", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "resolver_write", true, "", name)
	respOK(c, true)
}

// DELETE /api/resolver/:name —— realm 还挂着时拒绝
func (s *Server) deleteResolver(c *gin.Context) {
	name := c.Param("name")

	var realms []model.Realm
	if err := s.App.MasterDB.GormDataSource.Find(&realms).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	for _, r := range realms {
		for _, ref := range parseRealmResolvers(r.Resolvers) {
			if ref.Name == name {
				respErr(c, http.StatusBadRequest, codeBadRequest,
					"resolver in use by realm "+r.Name)
				return
			}
		}
	}

	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.Resolver{})
	if tx.Error != nil {
		s.audit(c, "resolver_delete", false, "", name+": "+tx.Error.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "resolver_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}

// POST /api/resolver/test  {type,config} —— 只做静态连通性前提检查，不真连后端
func (s *Server) testResolver(c *gin.Context) {
	var req struct {
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if !knownResolverType(req.Type) {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown resolver type: "+req.Type)
		return
	}

	missing := missingResolverKeys(req.Type, req.Config)
	if len(missing) > 0 {
		respOK(c, gin.H{"ok": false, "missing": missing})
		return
	}
	respOK(c, gin.H{"ok": true})
}

// 每种类型必须具备的配置键
func missingResolverKeys(typ string, cfg map[string]any) []string {
	var want []string
	switch typ {
	case "passwdresolver":
		want = []string{"filename"}
	case "sqlresolver":
		want = []string{"driver", "server", "database", "table"}
	case "ldapresolver":
		want = []string{"ldapuri", "basedn", "loginname_attribute"}
	case "httpresolver", "scimresolver":
		want = []string{"base_url"}
	}
	var missing []string
	for _, k := range want {
		v, ok := cfg[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		if sv, isStr := v.(string); isStr && strings.TrimSpace(sv) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}
