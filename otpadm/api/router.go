package api

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"otpadm/otpadm/common"
)

/********** Router **********/
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	// 中间件：Recovery + 日志 + 限速
	r.Use(gin.Recovery(), gin.Logger(), s.RateLimit())

	/********** 业务 API **********/
	api := r.Group("/api")
	{
		api.POST("/login", s.login)
	}

	auth := api.Group("/")
	auth.Use(s.AuthRequired())
	{
		auth.GET("/me", s.me)
		auth.PUT("/me/password", s.changePassword)

		auth.GET("/systemInfo", s.systemInfo)

		auth.GET("/policy", s.listPolicy)
		auth.GET("/policy/defs", s.policyDefs)
		auth.GET("/policy/:name", s.getPolicy)

		auth.GET("/resolver", s.listResolver)
		auth.GET("/resolver/:name", s.getResolver)

		auth.GET("/realm", s.listRealm)

		auth.GET("/caconnector", s.listCAConnector)
		auth.GET("/serviceid", s.listServiceID)
		auth.GET("/machineresolver", s.listMachineResolver)
		auth.GET("/machineresolver/:name", s.getMachineResolver)

		auth.GET("/token", s.listToken)
		auth.GET("/container", s.listContainer)
		auth.GET("/container/types", s.listContainerTypes)
		auth.GET("/container/:serial", s.getContainer)

		auth.GET("/event", s.listEvent)

		auth.GET("/audit", s.listAudit)
	}

	admin := auth.Group("/")
	admin.Use(AdminOnly())
	{
		admin.POST("/policy", s.upsertPolicy)
		admin.DELETE("/policy/:name", s.deletePolicy)
		admin.POST("/policy/enable/:name", s.setPolicyActive(true))
		admin.POST("/policy/disable/:name", s.setPolicyActive(false))

		admin.POST("/resolver", s.upsertResolver)
		admin.DELETE("/resolver/:name", s.deleteResolver)
		admin.POST("/resolver/test", s.testResolver)

		admin.POST("/realm/:name", s.upsertRealm)
		admin.DELETE("/realm/:name", s.deleteRealm)
		admin.POST("/defaultrealm/:name", s.setDefaultRealm)
		admin.DELETE("/defaultrealm", s.clearDefaultRealm)

		admin.POST("/caconnector", s.upsertCAConnector)
		admin.DELETE("/caconnector/:name", s.deleteCAConnector)

		admin.POST("/serviceid", s.upsertServiceID)
		admin.DELETE("/serviceid/:name", s.deleteServiceID)

		admin.POST("/machineresolver", s.createMachineResolver)
		admin.PUT("/machineresolver/:name", s.updateMachineResolver)
		admin.DELETE("/machineresolver/:name", s.deleteMachineResolver)

		admin.POST("/token/init", s.initToken)
		admin.POST("/token/assign", s.assignToken)
		admin.POST("/token/unassign", s.unassignToken)
		admin.POST("/token/reset", s.resetToken)
		admin.POST("/token/enable/:serial", s.setTokenActive(true))
		admin.POST("/token/disable/:serial", s.setTokenActive(false))
		admin.DELETE("/token/:serial", s.deleteToken)

		admin.POST("/container/init", s.initContainer)
		admin.POST("/container/:serial/add", s.containerAddToken)
		admin.POST("/container/:serial/remove", s.containerRemoveToken)
		admin.DELETE("/container/:serial", s.deleteContainer)

		admin.POST("/event", s.upsertEvent)
		admin.DELETE("/event/:id", s.deleteEvent)
		admin.POST("/event/enable/:id", s.setEventActive(true))
		admin.POST("/event/disable/:id", s.setEventActive(false))

		admin.GET("/config", s.ConfigRead)
		admin.PUT("/config", s.ConfigUpdate)
		admin.POST("/restart", s.ConfigRestart)
	}

	/********** 审计实时流 **********/
	ws := r.Group("/ws")
	ws.Use(s.AuthRequired())
	{
		ws.GET("/audit", s.auditFeed)
	}

	/********** 前端静态资源（Vue dist） **********/
	base := distBase()

	// 一般 Vite/Vue3 的静态资源放在 /assets 下，给它做静态目录映射
	r.Static("/assets", filepath.Join(base, "assets"))
	// 常见静态文件
	r.StaticFile("/favicon.ico", filepath.Join(base, "favicon.ico"))
	r.StaticFile("/robots.txt", filepath.Join(base, "robots.txt"))
	// 可选：如果有 manifest 等
	r.StaticFile("/manifest.webmanifest", filepath.Join(base, "manifest.webmanifest"))

	// 其余非 /api/** 的路径全部回退到 index.html（支持前端路由）
	r.NoRoute(func(c *gin.Context) {
		// 若是 /api 打头但没匹配到具体路由，返回 JSON 404，而不是把 index.html 返回给前端
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api" || strings.HasPrefix(c.Request.URL.Path, "/ws/") || c.Request.URL.Path == "/ws" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found", "time": time.Now().UnixMilli()})
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			c.Header("Cache-Control", "no-cache")
			c.File(filepath.Join(base, "index.html"))
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found", "time": time.Now().UnixMilli()})
		}
	})

	return r
}

func distBase() string {
	if common.IsDesktop() {
		return "./html"
	}
	return "/var/html/otpadm"
}
