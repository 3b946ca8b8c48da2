package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"golang.org/x/net/idna"
	"gorm.io/gorm"
	"otpadm/otpadm/model"
)

/********** CA 连接器 / service id / 机器源 **********/

// GET /api/caconnector
func (s *Server) listCAConnector(c *gin.Context) {
	var recs []model.CAConnector
	if err := s.App.MasterDB.GormDataSource.Order("name").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs)})
}

// POST /api/caconnector  {name,type,config}
func (s *Server) upsertCAConnector(c *gin.Context) {
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
	if name == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "caconnector name required")
		return
	}
	if req.Type != "local" && req.Type != "msca" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown caconnector type: "+req.Type)
		return
	}
	raw, err := json.Marshal(req.Config)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	g := s.App.MasterDB.GormDataSource
	var cnt int64
	if err := g.Model(&model.CAConnector{}).Where("name = ?", name).Count(&cnt).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if cnt > 0 {
		err = g.Model(&model.CAConnector{}).Where("name = ?", name).
			Updates(map[string]any{"type": req.Type, "config": string(raw)}).Error
	} else {
		err = g.Create(&model.CAConnector{Name: name, Type: req.Type, Config: string(raw)}).Error
	}
	if err != nil {
		s.audit(c, "caconnector_write", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "caconnector_write", true, "", name)
	respOK(c, true)
}

// DELETE /api/caconnector/:name
func (s *Server) deleteCAConnector(c *gin.Context) {
	name := c.Param("name")
	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.CAConnector{})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "caconnector_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}

/* ---- service id ---- */

// GET /api/serviceid
func (s *Server) listServiceID(c *gin.Context) {
	var recs []model.ServiceID
	if err := s.App.MasterDB.GormDataSource.Order("name").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs)})
}

// POST /api/serviceid  {name,description}
func (s *Server) upsertServiceID(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "serviceid name required")
		return
	}

	g := s.App.MasterDB.GormDataSource
	var cnt int64
	if err := g.Model(&model.ServiceID{}).Where("name = ?", name).Count(&cnt).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	var err error
	if cnt > 0 {
		err = g.Model(&model.ServiceID{}).Where("name = ?", name).
			Update("description", req.Description).Error
	} else {
		err = g.Create(&model.ServiceID{Name: name, Description: req.Description}).Error
	}
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "serviceid_write", true, "", name)
	respOK(c, true)
}

// DELETE /api/serviceid/:name
func (s *Server) deleteServiceID(c *gin.Context) {
	name := c.Param("name")
	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.ServiceID{})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "serviceid_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}

/* ---- 机器源 ---- */

// GET /api/machineresolver
func (s *Server) listMachineResolver(c *gin.Context) {
	var recs []model.MachineResolver
	if err := s.App.MasterDB.GormDataSource.Order("name").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs)})
}

// GET /api/machineresolver/:name
func (s *Server) getMachineResolver(c *gin.Context) {
	var m model.MachineResolver
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

// POST /api/machineresolver 新建；PUT /api/machineresolver/:name 更新
func (s *Server) createMachineResolver(c *gin.Context) {
	s.writeMachineResolver(c, "")
}

func (s *Server) updateMachineResolver(c *gin.Context) {
	s.writeMachineResolver(c, c.Param("name"))
}

func (s *Server) writeMachineResolver(c *gin.Context, fixedName string) {
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
	if fixedName != "" {
		name = fixedName
	}
	if name == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "machineresolver name required")
		return
	}
	if req.Type != "hosts" && req.Type != "ldap" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown machineresolver type: "+req.Type)
		return
	}
	// ldap 源的 uri 主机名走 IDNA 归一化检查
	if req.Type == "ldap" {
		if h, ok := req.Config["host"].(string); ok && h != "" {
			if _, err := idna.Lookup.ToASCII(h); err != nil {
				respErr(c, http.StatusBadRequest, codeBadRequest, "bad ldap host: "+h)
				return
			}
		}
	}
	raw, err := json.Marshal(req.Config)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	g := s.App.MasterDB.GormDataSource
	var existing model.MachineResolver
	err = g.Where("name = ?", name).Take(&existing).Error
	switch {
	case err == nil:
		if fixedName == "" {
			respErr(c, http.StatusBadRequest, codeBadRequest, "machineresolver exists: "+name)
			return
		}
		err = g.Model(&model.MachineResolver{}).Where("name = ?", name).
			Updates(map[string]any{"type": req.Type, "config": string(raw)}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = g.Create(&model.MachineResolver{Name: name, Type: req.Type, Config: string(raw)}).Error
	default:
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if err != nil {
		s.audit(c, "machineresolver_write", false, "", name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "machineresolver_write", true, "", name)
	respOK(c, true)
}

// DELETE /api/machineresolver/:name
func (s *Server) deleteMachineResolver(c *gin.Context) {
	name := c.Param("name")
	tx := s.App.MasterDB.GormDataSource.Where("name = ?", name).Delete(&model.MachineResolver{})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "machineresolver_delete", true, "", name)
	respOK(c, tx.RowsAffected)
}
