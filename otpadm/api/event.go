package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"otpadm/otpadm/model"
)

/********** 事件处理器 **********/

var eventHandlers = []string{"usernotification", "logging", "script", "tokenhandler"}

// REST 事件名（逗号列表的合法词表）
var knownEvents = map[string]struct{}{
	"token_init": {}, "token_assign": {}, "token_unassign": {},
	"token_enable": {}, "token_disable": {}, "token_delete": {},
	"policy_write": {}, "policy_delete": {},
	"login": {},
}

// GET /api/event
func (s *Server) listEvent(c *gin.Context) {
	var recs []model.Event
	if err := s.App.MasterDB.GormDataSource.Order("ordering, id").Find(&recs).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	respOK(c, gin.H{"list": recs, "total": len(recs), "handlers": eventHandlers})
}

// POST /api/event  {id?,name,event,handler,action,position,ordering,conditions,options}
// 带 id 为更新，否则新建
func (s *Server) upsertEvent(c *gin.Context) {
	var req struct {
		Id         int64          `json:"id"`
		Name       string         `json:"name"`
		Event      []string       `json:"event"`
		Handler    string         `json:"handler"`
		Action     string         `json:"action"`
		Position   string         `json:"position"`
		Ordering   int            `json:"ordering"`
		Conditions map[string]any `json:"conditions"`
		Options    map[string]any `json:"options"`
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "event handler name required")
		return
	}
	okHandler := false
	for _, h := range eventHandlers {
		if h == req.Handler {
			okHandler = true
			break
		}
	}
	if !okHandler {
		respErr(c, http.StatusBadRequest, codeBadRequest, "unknown handler: "+req.Handler)
		return
	}
	if req.Position != "pre" && req.Position != "post" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "position must be pre or post")
		return
	}
	for _, ev := range req.Event {
		if _, ok := knownEvents[ev]; !ok {
			respErr(c, http.StatusBadRequest, codeBadRequest, "unknown event: "+ev)
			return
		}
	}

	condJSON, err := json.Marshal(req.Conditions)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	optJSON, err := json.Marshal(req.Options)
	if err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	fields := map[string]any{
		"name":       strings.TrimSpace(req.Name),
		"event":      strings.Join(req.Event, ","),
		"handler":    req.Handler,
		"action":     req.Action,
		"position":   req.Position,
		"ordering":   req.Ordering,
		"conditions": string(condJSON),
		"options":    string(optJSON),
	}

	g := s.App.MasterDB.GormDataSource
	if req.Id > 0 {
		tx := g.Model(&model.Event{}).Where("id = ?", req.Id).Updates(fields)
		if tx.Error != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
			return
		}
		if tx.RowsAffected == 0 {
			respOK(c, nil)
			return
		}
		s.audit(c, "event_write", true, "", req.Name)
		respOK(c, req.Id)
		return
	}

	m := model.Event{
		Name:       strings.TrimSpace(req.Name),
		Event:      strings.Join(req.Event, ","),
		Handler:    req.Handler,
		Action:     req.Action,
		Position:   req.Position,
		Ordering:   req.Ordering,
		Active:     true,
		Conditions: string(condJSON),
		Options:    string(optJSON),
	}
	if err := g.Create(&m).Error; err != nil {
		s.audit(c, "event_write", false, "", req.Name+": "+err.Error())
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}
	s.audit(c, "event_write", true, "", req.Name)
	respOK(c, m.Id)
}

// DELETE /api/event/:id
func (s *Server) deleteEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respErr(c, http.StatusBadRequest, codeBadRequest, "bad event id")
		return
	}
	tx := s.App.MasterDB.GormDataSource.Where("id = ?", id).Delete(&model.Event{})
	if tx.Error != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
		return
	}
	s.audit(c, "event_delete", true, "", strconv.FormatInt(id, 10))
	respOK(c, tx.RowsAffected)
}

// POST /api/event/enable/:id  /  POST /api/event/disable/:id
func (s *Server) setEventActive(active bool) gin.HandlerFunc {
	action := "event_disable"
	if active {
		action = "event_enable"
	}
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			respErr(c, http.StatusBadRequest, codeBadRequest, "bad event id")
			return
		}
		tx := s.App.MasterDB.GormDataSource.Model(&model.Event{}).
			Where("id = ?", id).Update("active", active)
		if tx.Error != nil {
			respErr(c, http.StatusInternalServerError, codeServerError, tx.Error.Error())
			return
		}
		if tx.RowsAffected == 0 {
			respOK(c, nil)
			return
		}
		s.audit(c, action, true, "", strconv.FormatInt(id, 10))
		respOK(c, true)
	}
}
