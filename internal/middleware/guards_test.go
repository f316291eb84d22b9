package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/legacykeep/chat-store/internal/auth"
)

func guardedRouter(t *testing.T, mgr *auth.JWTManager, scope string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", RequireService(mgr, ""), RequireScope(scope), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			t.Error("claims missing from context inside handler")
		}
		c.JSON(http.StatusOK, gin.H{"service": claims.Service})
	})
	return r
}

func TestGuards_ScopeEnforcement(t *testing.T) {
	mgr := auth.NewJWTManager("test-secret", time.Hour)
	r := guardedRouter(t, mgr, "messages:read")

	token, _, err := mgr.GenerateToken("reader", []string{"messages:read"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	narrow, _, err := mgr.GenerateToken("transcoder", []string{"media:write"})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed", "Bearer not.a.token", http.StatusUnauthorized},
		{"wrong scope", "Bearer " + narrow, http.StatusForbidden},
		{"granted", "Bearer " + token, http.StatusOK},
	}
	for _, cs := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if cs.header != "" {
			req.Header.Set("Authorization", cs.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != cs.status {
			t.Fatalf("%s: status = %d, want %d", cs.name, w.Code, cs.status)
		}
	}
}
