package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"otpadm/otpadm/model"
)

/********** 令牌容器 **********/

var containerTypes = []string{"generic", "smartphone", "yubikey"}

func knownContainerType(t string) bool {
	for _, v := range containerTypes {
		if v == t {
			return true
		}
	}
	return false
}

// GET /api/container/types
func (s *Server) listContainerTypes(c *gin.Context) {
	respOK(c, containerTypes)
}

// GET /api/container
func (s *Server) listContainer(c *gin.Context) {
	var recs []model.Container
	if err := s.App.MasterDB.GormDataSource.Order("serial").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs)})
}

// POST /api/container/init  {type,description,realm}
func (s *Server) initContainer(c *gin.Context) {
	var req struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Realm       string `json:"realm"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	typ := strings.ToLower(strings.TrimSpace(req.Type))
	if !knownContainerType(typ) {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown container type: "+req.Type)
		return
	}

	serial := newSerial("CONT")
	m := model.Container{
		Serial:      serial,
		Type:        typ,
		Description: req.Description,
		Realm:       strings.TrimSpace(req.Realm),
	}
	if err := s.App.MasterDB.GormDataSource.Create(&m).Error; err != nil {
		s.audit(c, "container_init", false, serial, err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "container_init", true, serial, typ)
	respOK(c, gin.H{"serial": serial, "type": typ})
}

// GET /api/container/:serial —— 带已装入的 token 序列号
func (s *Server) getContainer(c *gin.Context) {
	serial := c.Param("serial")
	var m model.Container
	err := s.App.MasterDB.GormDataSource.Where("serial = ?", serial).Take(&m).Error
	if notFoundIsNull(c, err) {
		return
	}
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	var tokens []model.Token
	if err := s.App.MasterDB.GormDataSource.
		Where("container_serial = ?", serial).Find(&tokens).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	serials := make([]string, 0, len(tokens))
	for _, t := range tokens {
		serials = append(serials, t.Serial)
	}
	respOK(c, gin.H{"container": m, "tokens": serials})
}

// POST /api/container/:serial/add  {serial:<token serial>}
func (s *Server) containerAddToken(c *gin.Context) {
	contSerial := c.Param("serial")
	var req struct {
		Serial string `json:"serial"`
	}
	if err := c.BindJSON(&req); err != nil || req.Serial == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "token serial required")
		return
	}

	g := s.App.MasterDB.GormDataSource
	var cnt int64
	if err := g.Model(&model.Container{}).Where("serial = ?", contSerial).Count(&cnt).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	if cnt == 0 {
		respOK(c, nil)
		return
	}

	tx := g.Model(&model.Token{}).
		Where("serial = ?", req.Serial).Update("container_serial", contSerial)
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	if tx.RowsAffected == 0 {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown token: "+req.Serial)
		return
	}
	s.audit(c, "container_add", true, contSerial, req.Serial)
	respOK(c, true)
}

// POST /api/container/:serial/remove  {serial:<token serial>}
func (s *Server) containerRemoveToken(c *gin.Context) {
	contSerial := c.Param("serial")
	var req struct {
		Serial string `json:"serial"`
	}
	if err := c.BindJSON(&req); err != nil || req.Serial == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "token serial required")
		return
	}
	tx := s.App.MasterDB.GormDataSource.Model(&model.Token{}).
		Where("serial = ? AND container_serial = ?", req.Serial, contSerial).
		Update("container_serial", "")
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "container_remove", true, contSerial, req.Serial)
	respOK(c, tx.RowsAffected > 0)
}

// DELETE /api/container/:serial —— 事务里先摘 token 再删容器
func (s *Server) deleteContainer(c *gin.Context) {
	serial := c.Param("serial")
	g := s.App.MasterDB.GormDataSource

	var affected int64
	err := g.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Token{}).
			Where("container_serial = ?", serial).
			Update("container_serial", "").Error; err != nil {
			return err
		}
		res := tx.Where("serial = ?", serial).Delete(&model.Container{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		s.audit(c, "container_delete", false, serial, err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "container_delete", true, serial, "")
	respOK(c, affected)
}
