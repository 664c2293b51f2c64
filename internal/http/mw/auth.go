// Package mw provides HTTP middleware for the control API.
package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "controlToken"

// TokenHeader carries the control token for clients that cannot set Authorization.
const TokenHeader = "X-Control-Token"

// ControlToken rejects requests that do not present token. An empty token
// disables the check. Paths equal to or under an entry of public are exempt.
// EventSource clients cannot set headers, so the token is also accepted from
// the "token" query parameter.
func ControlToken(token string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}
			got := presentedToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("Content-Type", "application/problem+json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="chromenv"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"missing or invalid control token"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
