package mw

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/chromenv/internal/logging"
)

// RequestLogging copies chi's request ID into the logging context so
// handler and orchestrator logs carry request_id. Must run after middleware.RequestID.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(logging.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
