package middleware

import (
	"net/http"
)

// ReadOnlyMiddleware rejects writes when readOnly is set. Admins and the
// Plaid webhook are exempt.
func ReadOnlyMiddleware(readOnly bool, jwtSecret string) func(http.Handler) http.Handler {
	key := []byte(jwtSecret)
	allowedPosts := map[string]bool{
		"/api/plaid/webhook": true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !readOnly || r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodPost && allowedPosts[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if claims, err := ParseToken(tokenFromRequest(r), key); err == nil && claims.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Read-only mode: only GET requests are allowed", http.StatusForbidden)
		})
	}
}
