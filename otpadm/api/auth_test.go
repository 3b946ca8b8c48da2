package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"otpadm/otpadm/app"
	"otpadm/otpadm/common/config"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Admin.JWTSecret = "test-secret"
	cfg.Admin.TokenTTL = 120
	return New(&app.App{Cfg: cfg})
}

func authRouter(s *Server) *gin.Engine {
	r := gin.New()
	g := r.Group("/api")
	g.Use(s.AuthRequired())
	g.GET("/ping", func(c *gin.Context) { respOK(c, "pong") })
	adm := g.Group("/")
	adm.Use(AdminOnly())
	adm.GET("/secret", func(c *gin.Context) { respOK(c, "ok") })
	return r
}

type envelope struct {
	Result struct {
		Status bool            `json:"status"`
		Value  json.RawMessage `json:"value"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
}

func doGet(t *testing.T, r *gin.Engine, path, bearer string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad envelope %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestAuthRequiredMissingToken(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	code, env := doGet(t, r, "/api/ping", "")
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if env.Result.Status {
		t.Fatalf("result.status = true, want false")
	}
	if env.Result.Error == nil || env.Result.Error.Code != 576 {
		t.Fatalf("error = %+v, want code 576", env.Result.Error)
	}
}

func TestAuthRequiredExpiredToken(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	// 直接签一个已过期的 token（makeToken 对 ttl<=0 有兜底，不能用它造过期）
	now := time.Now()
	claims := Claims{
		UserId:   1,
		Username: "admin",
		IsAdmin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
		},
	}
	tk, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.App.Cfg.Admin.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	code, env := doGet(t, r, "/api/ping", tk)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if env.Result.Error == nil || env.Result.Error.Code != 576 {
		t.Fatalf("error = %+v, want code 576", env.Result.Error)
	}
}

func TestAuthRequiredWrongSecret(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	other := newTestServer()
	other.App.Cfg.Admin.JWTSecret = "another-secret"
	tk, err := other.makeToken(1, "admin", true)
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}

	code, env := doGet(t, r, "/api/ping", tk)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if env.Result.Error == nil || env.Result.Error.Code != 576 {
		t.Fatalf("error = %+v, want code 576", env.Result.Error)
	}
}

func TestAuthRequiredValidToken(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	tk, err := s.makeToken(7, "alice", false)
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}
	code, env := doGet(t, r, "/api/ping", tk)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !env.Result.Status {
		t.Fatalf("result.status = false, want true")
	}
	if string(env.Result.Value) != `"pong"` {
		t.Fatalf("value = %s, want \"pong\"", env.Result.Value)
	}
}

func TestAdminOnlyRejectsNonAdmin(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	tk, err := s.makeToken(7, "alice", false)
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}
	code, env := doGet(t, r, "/api/secret", tk)
	if code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", code)
	}
	if env.Result.Error == nil || env.Result.Error.Code != 4031 {
		t.Fatalf("error = %+v, want code 4031", env.Result.Error)
	}
}

func TestAdminOnlyAllowsAdmin(t *testing.T) {
	s := newTestServer()
	r := authRouter(s)

	tk, err := s.makeToken(1, "admin", true)
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}
	code, env := doGet(t, r, "/api/secret", tk)
	if code != http.StatusOK || !env.Result.Status {
		t.Fatalf("status = %d env = %+v, want 200 ok", code, env.Result)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	s := newTestServer()
	tk, err := s.makeToken(42, "bob", true)
	if err != nil {
		t.Fatalf("makeToken: %v", err)
	}
	claims, err := s.parseToken(tk)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.UserId != 42 || claims.Username != "bob" || !claims.IsAdmin {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Fatalf("token should not be expired yet")
	}
}
