// Package auth provides optional bearer-token authentication.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/constellations": true,
}

// exemptSuffixes cover per-constellation routes that are always public.
var exemptSuffixes = []string{
	"/tle/metadata",
}

func isExempt(path string) bool {
	if exemptPaths[path] {
		return true
	}
	for _, suffix := range exemptSuffixes {
		if strings.HasPrefix(path, "/api/") && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, httputil.CodeUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
