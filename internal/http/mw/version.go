package mw

import (
	"net/http"

	"github.com/jmylchreest/chromenv/internal/version"
)

// VersionHeader is set on every response.
const VersionHeader = "X-Chromenv-Version"

// APIVersion returns middleware that adds the daemon version to all responses
// so clients can detect a restarted or upgraded daemon.
func APIVersion() func(http.Handler) http.Handler {
	v := version.Get().Version

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, v)
			next.ServeHTTP(w, r)
		})
	}
}
