package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RequireKey gates the API behind a bearer key compared against a bcrypt hash.
// With an empty hash the middleware is a pass-through, which is the default
// for local use.
func RequireKey(keyHash string) func(http.Handler) http.Handler {
	hash := []byte(strings.TrimSpace(keyHash))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
