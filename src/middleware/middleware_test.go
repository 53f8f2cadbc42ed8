package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email: "user@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestJWTAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	valid := mintToken(t, userID.String(), "authenticated", time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "query token", query: "?token=" + valid, wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + mintToken(t, userID.String(), "authenticated", time.Now().Add(-time.Hour)), wantStatus: http.StatusUnauthorized},
		{name: "non uuid subject", header: "Bearer " + mintToken(t, "42", "authenticated", time.Now().Add(time.Hour)), wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			h := JWTAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = UserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/goals"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, userID, got)
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	h := JWTAuthMiddleware(testSecret)(AdminMiddleware(okHandler))

	for role, want := range map[string]int{
		"service_role":  http.StatusOK,
		"authenticated": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/cache/clear/goals", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, uuid.NewString(), role, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestReadOnlyMiddleware(t *testing.T) {
	admin := mintToken(t, uuid.NewString(), "service_role", time.Now().Add(time.Hour))
	user := mintToken(t, uuid.NewString(), "authenticated", time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		readOnly   bool
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"writes allowed when off", false, http.MethodPost, "/api/goals", user, http.StatusOK},
		{"get allowed", true, http.MethodGet, "/api/goals", user, http.StatusOK},
		{"post rejected", true, http.MethodPost, "/api/goals", user, http.StatusForbidden},
		{"delete rejected", true, http.MethodDelete, "/api/goals/1", user, http.StatusForbidden},
		{"webhook allowed", true, http.MethodPost, "/api/plaid/webhook", "", http.StatusOK},
		{"admin allowed", true, http.MethodPost, "/api/goals", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			ReadOnlyMiddleware(tt.readOnly, testSecret)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://app.finpilot.dev"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/goals", nil)
	req.Header.Set("Origin", "https://app.finpilot.dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.finpilot.dev", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
