package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"otpadm/otpadm/common"
	"otpadm/otpadm/core/listview"
	"otpadm/otpadm/model"
)

/********** 令牌 **********/

var tokenTypes = map[string]string{
	"hotp":  "OATH",
	"totp":  "TOTP",
	"spass": "PISP",
}

// 序列号：前缀 + 时间 + 4 字节随机，足够唯一且可读
func newSerial(prefix string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s%s%s", prefix, time.Now().Format("060102"), strings.ToUpper(hex.EncodeToString(b)))
}

func newOTPKey() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

var tokenListCols = []string{"serial", "type", "username", "realm", "description"}

// GET /api/token?filter=&sortby=&sortdir=&page=&pagesize=
func (s *Server) listToken(c *gin.Context) {
	var recs []model.Token
	if err := s.App.MasterDB.GormDataSource.Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	bydSerial := make(map[string]model.Token, len(recs))
	rows := make([]listview.Row, 0, len(recs))
	for _, t := range recs {
		bydSerial[t.Serial] = t
		rows = append(rows, listview.Row{
			"serial":      t.Serial,
			"type":        t.Type,
			"active":      strconv.FormatBool(t.Active),
			"username":    t.Username,
			"realm":       t.Realm,
			"failcount":   strconv.Itoa(t.Failcount),
			"description": t.Description,
		})
	}

	q := listview.ParseQuery(c.Query("filter"))
	rows = listview.Apply(rows, tokenListCols, q)
	listview.Sort(rows, c.DefaultQuery("sortby", "serial"), c.Query("sortdir"))

	total := len(rows)
	page, size := common.GetPage(c)
	rows = listview.Page(rows, page, size)

	out := make([]model.Token, 0, len(rows))
	for _, r := range rows {
		out = append(out, bydSerial[r["serial"]])
	}
	respOK(c, gin.H{"list": out, "total": total, "page": page, "pagesize": size})
}

// POST /api/token/init  {type,username,realm,description,maxfail}
// 产生序列号 + 种子；种子只在本次响应里回传，库里只存摘要
func (s *Server) initToken(c *gin.Context) {
	var req struct {
		Type        string `json:"type"`
		Username    string `json:"username"`
		Realm       string `json:"realm"`
		Description string `json:"description"`
		MaxFail     int    `json:"maxfail"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	typ := strings.ToLower(strings.TrimSpace(req.Type))
	prefix, ok := tokenTypes[typ]
	if !ok {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown token type: "+req.Type)
		return
	}
	if req.MaxFail <= 0 {
		req.MaxFail = 10
	}

	serial := newSerial(prefix)
	key := newOTPKey()

	t := model.Token{
		Serial:       serial,
		Type:         typ,
		Active:       true,
		OTPKeySha256: common.HashUP(key),
		MaxFail:      req.MaxFail,
		Username:     strings.TrimSpace(req.Username),
		Realm:        strings.TrimSpace(req.Realm),
		Description:  req.Description,
	}
	if err := s.App.MasterDB.GormDataSource.Create(&t).Error; err != nil {
		s.audit(c, "token_init", false, serial, err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "token_init", true, serial, typ)
	respOK(c, gin.H{"serial": serial, "otpkey": key, "type": typ})
}

// POST /api/token/assign  {serial,username,realm}
func (s *Server) assignToken(c *gin.Context) {
	var req struct {
		Serial   string `json:"serial"`
		Username string `json:"username"`
		Realm    string `json:"realm"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Serial == "" || strings.TrimSpace(req.Username) == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "serial and username required")
		return
	}
	tx := s.App.MasterDB.GormDataSource.Model(&model.Token{}).
		Where("serial = ?", req.Serial).
		Updates(map[string]any{"username": strings.TrimSpace(req.Username), "realm": strings.TrimSpace(req.Realm)})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	if tx.RowsAffected == 0 {
		respOK(c, nil)
		return
	}
	s.audit(c, "token_assign", true, req.Serial, req.Username)
	respOK(c, true)
}

// POST /api/token/unassign  {serial}
func (s *Server) unassignToken(c *gin.Context) {
	var req struct {
		Serial string `json:"serial"`
	}
	if err := c.BindJSON(&req); err != nil || req.Serial == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "serial required")
		return
	}
	tx := s.App.MasterDB.GormDataSource.Model(&model.Token{}).
		Where("serial = ?", req.Serial).
		Updates(map[string]any{"username": "", "realm": ""})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "token_unassign", true, req.Serial, "")
	respOK(c, tx.RowsAffected > 0)
}

// POST /api/token/reset  {serial} —— 清 failcount
func (s *Server) resetToken(c *gin.Context) {
	var req struct {
		Serial string `json:"serial"`
	}
	if err := c.BindJSON(&req); err != nil || req.Serial == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "serial required")
		return
	}
	tx := s.App.MasterDB.GormDataSource.Model(&model.Token{}).
		Where("serial = ?", req.Serial).Update("failcount", 0)
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "token_reset", true, req.Serial, "")
	respOK(c, tx.RowsAffected > 0)
}

// POST /api/token/enable/:serial  /  POST /api/token/disable/:serial
func (s *Server) setTokenActive(active bool) gin.HandlerFunc {
	action := "token_disable"
	if active {
		action = "token_enable"
	}
	return func(c *gin.Context) {
		serial := c.Param("serial")
		tx := s.App.MasterDB.GormDataSource.Model(&model.Token{}).
			Where("serial = ?", serial).Update("active", active)
		if tx.Error != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
			return
		}
		if tx.RowsAffected == 0 {
			respOK(c, nil)
			return
		}
		s.audit(c, action, true, serial, "")
		respOK(c, true)
	}
}

// DELETE /api/token/:serial
func (s *Server) deleteToken(c *gin.Context) {
	serial := c.Param("serial")
	tx := s.App.MasterDB.GormDataSource.Where("serial = ?", serial).Delete(&model.Token{})
	if tx.Error != nil {
		s.audit(c, "token_delete", false, serial, tx.Error.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "token_delete", true, serial, "")
	respOK(c, tx.RowsAffected)
}
