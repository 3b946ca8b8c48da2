package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"gorm.io/gorm"
	"otpadm/otpadm/model"
)

/********** realm **********/

type realmResolverRef struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

func parseRealmResolvers(raw string) []realmResolverRef {
	var refs []realmResolverRef
	if strings.TrimSpace(raw) == "" {
		return refs
	}
	_ = json.Unmarshal([]byte(raw), &refs)
	return refs
}

// GET /api/realm
func (s *Server) listRealm(c *gin.Context) {
	var recs []model.Realm
	if err := s.App.MasterDB.GormDataSource.Order("name").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	type outRow struct {
		Name      string             `json:"name"`
		IsDefault bool               `json:"is_default"`
		Resolvers []realmResolverRef `json:"resolvers"`
	}
	outs := make([]outRow, 0, len(recs))
	for _, r := range recs {
		outs = append(outs, outRow{
			Name:      r.Name,
			IsDefault: r.IsDefault,
			Resolvers: parseRealmResolvers(r.Resolvers),
		})
	}
	respOK(c, gin.H{"list": outs, "total": len(outs)})
}

// POST /api/realm/:name  {resolvers:[{name,priority},...]}
// 创建或整体替换该 realm 的 resolver 挂载
func (s *Server) upsertRealm(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" || strings.Contains(name, ",") {
		respErr(c, http.StatusBadRequest, codeBadRequest, "realm name required (no comma)")
		return
	}
	var req struct {
		Resolvers []realmResolverRef `json:"resolvers"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	g := s.App.MasterDB.GormDataSource

	// 引用的 resolver 必须都存在
	for _, ref := range req.Resolvers {
		var cnt int64
		if err := g.Model(&model.Resolver{}).Where("name = ?", ref.Name).Count(&cnt).Error; err != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
			return
		}
		if cnt == 0 {
			respErr(c, http.StatusBadRequest, codeBadRequest, "unknown resolver: "+ref.Name)
			return
		}
	}

	raw, err := json.Marshal(req.Resolvers)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	var cnt int64
	if err := g.Model(&model.Realm{}).Where("name = ?", name).Count(&cnt).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if cnt > 0 {
		err = g.Model(&model.Realm{}).Where("name = ?", name).Update("resolvers", string(raw)).Error
	} else {
		err = g.Create(&model.Realm{Name: name, Resolvers: string(raw)}).Error
	}
	if err != nil {
		s.audit(c, "realm_write", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "realm_write", true, "", name)
	respOK(c, true)
}

// DELETE /api/realm/:name
func (s *Server) deleteRealm(c *gin.Context) {
	name := c.Param("name")
	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.Realm{})
	if tx.Error != nil {
		s.audit(c, "realm_delete", false, "", name+": "+tx.Error.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "realm_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}

// POST /api/defaultrealm/:name —— 事务里先清后设，保证唯一默认
func (s *Server) setDefaultRealm(c *gin.Context) {
	name := c.Param("name")
	g := s.App.MasterDB.GormDataSource

	var cnt int64
	if err := g.Model(&model.Realm{}).Where("name = ?", name).Count(&cnt).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if cnt == 0 {
		respOK(c, nil)
		return
	}

	err := g.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Realm{}).
			Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Realm{}).
			Where("name = ?", name).Update("is_default", true).Error
	})
	if err != nil {
		s.audit(c, "defaultrealm_set", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "defaultrealm_set", true, "", name)
	respOK(c, true)
}

// DELETE /api/defaultrealm
func (s *Server) clearDefaultRealm(c *gin.Context) {
	if err := s.App.MasterDB.GormDataSource.Model(&model.Realm{}).
		Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "defaultrealm_clear", true, "", "")
	respOK(c, true)
}
