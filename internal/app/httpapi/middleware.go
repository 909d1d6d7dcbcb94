package httpapi

import (
	"net/http"
	"strings"
)

// authMiddleware guards routes with static bearer tokens. An empty token
// list disables the guard (local development).
func authMiddleware(tokens []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			allowed[t] = true
		}
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !allowed[strings.TrimSpace(token)] {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
