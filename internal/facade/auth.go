package facade

import (
	"net/http"
	"strings"
)

// authMiddleware enforces the optional bearer-token allowlist on every
// route under /v1/* and /peers; /health is never gated.
func (f *Facade) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.cfg.BearerAuthEnabled {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || !f.allowedKey(token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

func (f *Facade) allowedKey(token string) bool {
	for _, k := range f.cfg.Keys {
		if k == token {
			return true
		}
	}
	return false
}
