package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finpilot-server/src/handlers"
	"finpilot-server/src/realtime"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

func token(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newTestRouter(readOnly bool) http.Handler {
	return NewRouter(&handlers.Env{}, realtime.NewHub(nil), Options{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:5173"},
		ReadOnly:       readOnly,
	})
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name       string
		readOnly   bool
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{"health is public", false, http.MethodGet, "/health", "", http.StatusOK},
		{"metrics is public", false, http.MethodGet, "/metrics", "", http.StatusOK},
		{"invalidation keys are public", false, http.MethodGet, "/api/cache/keys/budget:create", "", http.StatusOK},
		{"protected route needs a token", false, http.MethodGet, "/api/budgets", "", http.StatusUnauthorized},
		{"garbage token", false, http.MethodGet, "/api/budgets", "Bearer nope", http.StatusUnauthorized},
		{"admin route rejects users", false, http.MethodPost, "/api/admin/cache/clear/budgets", "authenticated", http.StatusForbidden},
		{"read-only blocks writes", true, http.MethodPost, "/api/budgets", "authenticated", http.StatusForbidden},
		{"unknown route", false, http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			switch {
			case tt.auth == "authenticated":
				req.Header.Set("Authorization", "Bearer "+token(t, "authenticated"))
			case tt.auth != "":
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			newTestRouter(tt.readOnly).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/budgets", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	newTestRouter(false).ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
