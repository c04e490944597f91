package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/nexis-health/nexis-backend/internal/api/response"
)

// Recovery converts request-path panics into a 500 envelope. Panics inside
// the analysis workers never reach here; the worker boundary recovers those
// and fails the entry instead.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.Error("panic in request handler",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
