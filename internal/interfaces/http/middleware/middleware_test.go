package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"payos.backend/pkg/jwt"
	"payos.backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, id)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
}

func TestLoggerMiddleware_PropagatesHandler(t *testing.T) {
	r := gin.New()
	r.Use(LoggerMiddleware())
	r.GET("/handlers/:handlerId", func(c *gin.Context) {
		handler, _ := c.Request.Context().Value(logger.HandlerIDKey).(string)
		c.String(http.StatusOK, handler)
	})

	req := httptest.NewRequest(http.MethodGet, "/handlers/payos_settlement?x=1", nil)
	req.Header.Set("X-Tenant-ID", "spoofed")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "payos_settlement", w.Body.String())
}

func TestTenantAuthMiddleware(t *testing.T) {
	svc := jwt.NewJWTService("secret", "payos", time.Hour)
	tenant, err := svc.GenerateTenantToken("tenant-9")
	require.NoError(t, err)
	admin, err := svc.GenerateToken("ops@payos", jwt.RoleAdmin)
	require.NoError(t, err)

	r := gin.New()
	r.Use(TenantAuthMiddleware(svc))
	r.POST("/payments", func(c *gin.Context) {
		fromGin, _ := GetTenant(c)
		fromCtx, _ := c.Request.Context().Value(logger.TenantIDKey).(string)
		c.String(http.StatusOK, fromGin+"|"+fromCtx)
	})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "Authorization header is required"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "Invalid token"},
		{"admin token", "Bearer " + admin, http.StatusForbidden, "Tenant token required"},
		{"tenant", "Bearer " + tenant, http.StatusOK, "tenant-9|tenant-9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payments", nil)
			if tc.header != "" {
				req.Header.Set(AuthorizationHeader, tc.header)
			}
			req.Header.Set("X-Tenant-ID", "tenant-other")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	svc := jwt.NewJWTService("secret", "payos", time.Hour)
	admin, err := svc.GenerateToken("ops@payos", jwt.RoleAdmin)
	require.NoError(t, err)
	viewer, err := svc.GenerateToken("viewer@payos", "VIEWER")
	require.NoError(t, err)
	expired, err := jwt.NewJWTService("secret", "payos", -time.Minute).GenerateToken("ops@payos", jwt.RoleAdmin)
	require.NoError(t, err)

	r := gin.New()
	r.Use(AdminAuthMiddleware(svc))
	r.POST("/admin", func(c *gin.Context) {
		op, _ := GetOperator(c)
		c.String(http.StatusOK, op)
	})

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, "Authorization header is required"},
		{"format", "Token abc", http.StatusUnauthorized, "Invalid authorization format"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "Invalid token"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Token has expired"},
		{"role", "Bearer " + viewer, http.StatusForbidden, "FORBIDDEN"},
		{"admin", "Bearer " + admin, http.StatusOK, "ops@payos"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tc.header != "" {
				req.Header.Set(AuthorizationHeader, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}
