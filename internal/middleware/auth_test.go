package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

// stubPolicy allows exactly the listed role/page/op triples.
type stubPolicy struct {
	allow      map[string]bool
	superusers map[string]bool
}

func (p stubPolicy) Decide(_ context.Context, s access.Subject, page model.Page, op model.Operation) bool {
	return p.superusers[s.Role] || p.allow[s.Role+":"+string(page)+"."+string(op)]
}

func (p stubPolicy) IsSuperuser(_ context.Context, s access.Subject) bool {
	return p.superusers[s.Role]
}

func newRouter(t *testing.T) (*gin.Engine, *Auth) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := NewAuth(secret, stubPolicy{
		allow:      map[string]bool{"manager:projects.delete": true},
		superusers: map[string]bool{"admin": true},
	}, false, zap.NewNop())

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	api := r.Group("/api", auth.Authenticate())
	api.DELETE("/projects/:id", auth.RequireCapability(model.PageProjects, model.OpDelete), func(c *gin.Context) {
		s, _ := SubjectFrom(c)
		c.String(http.StatusOK, s.Email)
	})
	api.GET("/roles", auth.RequireSuperuser(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/login", func(c *gin.Context) {
		auth.SetTokenCookie(c, "tok", time.Hour)
		c.Status(http.StatusOK)
	})
	return r, auth
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := access.IssueToken(secret, access.Subject{UserID: "u-1", Email: role + "@example.com", Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func TestAuth_Gates(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"no credentials", http.MethodDelete, "/api/projects/1", "", http.StatusUnauthorized},
		{"malformed header", http.MethodDelete, "/api/projects/1", "Token abc", http.StatusUnauthorized},
		{"bad token", http.MethodDelete, "/api/projects/1", "Bearer abc", http.StatusUnauthorized},
		{"allowed", http.MethodDelete, "/api/projects/1", "Bearer " + token(t, "manager"), http.StatusOK},
		{"denied", http.MethodDelete, "/api/projects/1", "Bearer " + token(t, "associate"), http.StatusForbidden},
		{"superuser passes capability", http.MethodDelete, "/api/projects/1", "Bearer " + token(t, "admin"), http.StatusOK},
		{"superuser gate denies manager", http.MethodGet, "/api/roles", "Bearer " + token(t, "manager"), http.StatusForbidden},
		{"superuser gate allows admin", http.MethodGet, "/api/roles", "Bearer " + token(t, "admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuth_CookieSession(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/1", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: token(t, "manager")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "manager@example.com", w.Body.String())
}

func TestAuth_SetTokenCookie(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, accessTokenCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}
