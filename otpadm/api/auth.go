package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"otpadm/otpadm/common"
	"otpadm/otpadm/common/subscription"
	"otpadm/otpadm/model"
)

/******** JWT / Claims ********/

type Claims struct {
	UserId   int64  `json:"uid"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

func (s *Server) makeToken(uid int64, username string, admin bool) (string, error) {
	ttl := s.App.Cfg.Admin.TokenTTL
	if ttl <= 0 {
		ttl = 120
	}
	now := time.Now()
	claims := Claims{
		UserId:   uid,
		Username: username,
		IsAdmin:  admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttl) * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.App.Cfg.Admin.JWTSecret))
}

func (s *Server) parseToken(tk string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tk, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(s.App.Cfg.Admin.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

/******** Middlewares ********/

// AuthRequired parses Authorization: Bearer <token>
// 失效/缺失 => 401 + code 576，前端以此触发重新登录
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			respAbort(c, http.StatusUnauthorized, codeSessionExpired, "Authentication failure. Missing or invalid token.")
			return
		}
		tk := strings.TrimSpace(auth[7:])
		claims, err := s.parseToken(tk)
		if err != nil {
			respAbort(c, http.StatusUnauthorized, codeSessionExpired, "Authentication failure. Token expired or invalid.")
			return
		}
		c.Set("uid", claims.UserId)
		c.Set("username", claims.Username)
		c.Set("isAdmin", claims.IsAdmin)
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("isAdmin")
		if !exists || !v.(bool) {
			respAbort(c, http.StatusForbidden, codeForbidden, "You do not have the necessary rights.")
			return
		}
		c.Next()
	}
}

/******** Handlers: /login /me /me/password ********/

// POST /api/login  {username,password,a}
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		A        string `json:"a"` // 订阅串（可选，见下）
	}
	if err := c.BindJSON(&req); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	u := strings.TrimSpace(req.Username)
	p := strings.TrimSpace(req.Password)
	if u == "" || p == "" {
		respErr(c, http.StatusBadRequest, codeBadRequest, "username/password required")
		return
	}

	ip := c.ClientIP() // 需要在 gin.Engine 上配置 TrustedProxies
	if s.Guard != nil {
		if ok, retry := s.Guard.Allow(ip, u); !ok {
			// 统一返回 429，不暴露存在与否
			if retry > 0 {
				c.Header("Retry-After", fmt.Sprintf("%.0f", retry.Seconds()))
			}
			respErr(c, http.StatusTooManyRequests, http.StatusTooManyRequests, "Too many attempts, try later")
			return
		}
	}

	var m model.User
	if err := s.App.MasterDB.GormDataSource.
		Where("username = ?", u).
		Take(&m).Error; err != nil {
		if s.Guard != nil {
			s.Guard.Fail(ip, u)
		}
		s.audit(c, "login", false, "", "user unknown")
		// 模糊错误
		respErr(c, http.StatusUnauthorized, http.StatusUnauthorized, "Login failed, please check username and password")
		return
	}

	// sha256 / bcrypt 摘要都认
	if !common.PasswordOK(m.PasswordSha256, m.PasswordBcrypt, p) {
		if s.Guard != nil {
			s.Guard.Fail(ip, u)
		}
		s.audit(c, "login", false, "", "wrong credentials")
		respErr(c, http.StatusUnauthorized, http.StatusUnauthorized, "Login failed, please check username and password")
		return
	}
	if !common.StatusOK(m.Status) {
		if s.Guard != nil {
			s.Guard.Success(ip, u)
		} // 账号存在且密码正确 -> 成功尝试，避免继续被封
		respErr(c, http.StatusForbidden, codeForbidden, "user disabled")
		return
	}
	// 是否 admin
	admin := common.IsAdminID(s.App.Cfg.Admin.AdminIDs, m.Id)
	if !s.App.Cfg.Subscription.Admin {
		ok, msg, sp := subscription.VerifySubscriptionEd25519(req.A)
		if !ok {
			if msg == "" {
				msg = "invalid subscription"
			}
			respErr(c, http.StatusForbidden, codeForbidden, msg)
			return
		}
		// 管理员 => 维护到全局（仅内存）
		if admin {
			s.App.Cfg.Subscription = *sp
		}
	}

	tk, err := s.makeToken(m.Id, m.Username, admin)
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	if s.Guard != nil {
		s.Guard.Success(ip, u)
	}
	subOK, subMsg := common.TimeAndMachineCode(
		s.App.Cfg.Subscription.RunTime,
		s.App.Cfg.Subscription.MachineCode,
	)

	// subscription_message 统一返回字符串：有效时为空字符串，无效时给出提示
	subscriptionMessage := ""
	if !subOK {
		subscriptionMessage = subMsg
	}

	s.audit(c, "login", true, "", "")
	respOK(c, gin.H{
		"token":                tk,
		"user":                 gin.H{"id": m.Id, "username": m.Username, "realm": m.Realm},
		"is_admin":             admin,
		"subscription_message": subscriptionMessage,
	})
}

// GET /api/me
func (s *Server) me(c *gin.Context) {
	uid, isAdmin := common.GetAuth(c)

	var u model.User
	if err := s.App.MasterDB.GormDataSource.
		Where("id = ?", uid).
		Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respErr(c, http.StatusUnauthorized, codeSessionExpired, "user not found")
			return
		}
		respErr(c, http.StatusInternalServerError, codeServerError, err.Error())
		return
	}

	respOK(c, gin.H{
		"id":               u.Id,
		"username":         u.Username,
		"realm":            u.Realm,
		"status":           u.Status,
		"create_date_time": u.CreateDateTime,
		"update_date_time": u.UpdateDateTime,
		"is_admin":         isAdmin,
	})
}

// PUT /api/me/password
// Body: { "old_password": "xxx", "new_password": "yyy", "confirm": "yyy" }
func (s *Server) changePassword(c *gin.Context) {
	type req struct {
		Old string `json:"old_password"`
		New string `json:"new_password"`
		Con string `json:"confirm"`
	}
	var r req
	if err := c.BindJSON(&r); err != nil {
		respErr(c, http.StatusBadRequest, codeBadRequest, "bad request")
		return
	}
	if len(r.Old) == 0 || len(r.New) == 0 || len(r.Con) == 0 {
		respErr(c, http.StatusBadRequest, codeBadRequest, "Password cannot be empty")
		return
	}
	if strings.TrimSpace(r.New) != r.New {
		respErr(c, http.StatusBadRequest, codeBadRequest, "New password cannot have leading or trailing spaces")
		return
	}
	if len(r.New) < 6 || len(r.New) > 64 {
		respErr(c, http.StatusBadRequest, codeBadRequest, "New password length must be between 6 and 64 characters")
		return
	}
	if r.New != r.Con {
		respErr(c, http.StatusBadRequest, codeBadRequest, "New passwords do not match")
		return
	}

	uid, _ := common.GetAuth(c)

	var u model.User
	if err := s.App.MasterDB.GormDataSource.Select("id, username, password_sha256, password_bcrypt").
		Where("id = ?", uid).
		Take(&u).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, "Failed to read user")
		return
	}
	if !common.PasswordOK(u.PasswordSha256, u.PasswordBcrypt, r.Old) {
		respErr(c, http.StatusBadRequest, codeBadRequest, "Incorrect old password")
		return
	}

	bc, err := common.HashBcrypt(r.New)
	if err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, "Failed to hash password")
		return
	}
	if err := s.App.MasterDB.GormDataSource.Model(&model.User{}).
		Where("id = ?", uid).
		Updates(map[string]any{
			"password_sha256": common.HashUP(r.New),
			"password_bcrypt": bc,
		}).Error; err != nil {
		respErr(c, http.StatusInternalServerError, codeServerError, "Failed to update password")
		return
	}
	s.audit(c, "change_password", true, "", "")
	respOK(c, true)
}
