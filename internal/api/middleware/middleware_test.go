package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"curriplan/config"
	"curriplan/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2567",
		Issuer:         "curriplan",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func protectedRouter(mgr *jwt.Manager, roles ...string) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuth(mgr))
	handlers := []gin.HandlerFunc{}
	if len(roles) > 0 {
		handlers = append(handlers, RoleAuth(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	r.GET("/p", handlers...)
	return r
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	token, _ := mgr.GenerateAccessToken("u-1", jwt.RoleStaff)
	r := protectedRouter(mgr)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token " + token, http.StatusUnauthorized},
		{"无效 Token", "Bearer garbage", http.StatusUnauthorized},
		{"有效 Token", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(r, tc.header)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}

	if w := get(r, "Bearer "+token); w.Body.String() != "u-1" {
		t.Errorf("expected user_id u-1 in context, got %q", w.Body.String())
	}
}

func TestRoleAuth(t *testing.T) {
	mgr := newTestJWT()
	r := protectedRouter(mgr, jwt.RoleAdmin, jwt.RoleStaff)

	viewer, _ := mgr.GenerateAccessToken("u-2", jwt.RoleViewer)
	if w := get(r, "Bearer "+viewer); w.Code != http.StatusForbidden {
		t.Errorf("viewer: expected 403, got %d", w.Code)
	}
	staff, _ := mgr.GenerateAccessToken("u-3", jwt.RoleStaff)
	if w := get(r, "Bearer "+staff); w.Code != http.StatusOK {
		t.Errorf("staff: expected 200, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("expected passthrough request id, got body=%q header=%q", w.Body.String(), w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/p", nil))
	if len(w.Body.String()) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Body.String())
	}
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func rateLimitedRouter(limiter RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "u-1")
		c.Next()
	})
	r.POST("/m", RateLimit(limiter, 10, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit(t *testing.T) {
	cases := []struct {
		name    string
		limiter RateLimiter
		want    int
	}{
		{"未配置 Redis", nil, http.StatusOK},
		{"允许", &stubLimiter{allowed: true}, http.StatusOK},
		{"超限", &stubLimiter{allowed: false}, http.StatusTooManyRequests},
		{"Redis 异常降级", &stubLimiter{err: errors.New("down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			rateLimitedRouter(tc.limiter).ServeHTTP(w, httptest.NewRequest("POST", "/m", nil))
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}

	stub := &stubLimiter{allowed: true}
	w := httptest.NewRecorder()
	rateLimitedRouter(stub).ServeHTTP(w, httptest.NewRequest("POST", "/m", nil))
	if len(stub.keys) != 1 || stub.keys[0] != "rate_limit:u-1:/m" {
		t.Errorf("unexpected rate limit keys %v", stub.keys)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/p", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected allowed origin header")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected allow origin for unknown origin")
	}
}
