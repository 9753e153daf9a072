package server

import (
	"net/http"

	"github.com/rs/zerolog"
)

// originValidationMiddleware rejects browser requests whose Origin header is not in allowed.
// Requests without Origin pass; a wildcard "*" allows any origin.
func originValidationMiddleware(allowed []string) Middleware {
	return func(next http.Handler) http.Handler {
		allowedMap := make(map[string]bool, len(allowed))
		for _, v := range allowed {
			allowedMap[v] = true
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedMap["*"] || allowedMap[origin] {
				next.ServeHTTP(w, r)
				return
			}
			zerolog.Ctx(r.Context()).Warn().Str("origin", origin).Msg("origin not allowed")
			http.Error(w, "origin not allowed", http.StatusForbidden)
		})
	}
}
