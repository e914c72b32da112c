package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// visitorAuth guards the routes that return visitor contact details. With no
// Token configured they stay open; the server only listens on loopback.
// The auth scheme is matched case-insensitively.
func (d Deps) visitorAuth(next http.Handler) http.Handler {
	if d.Token == "" {
		return next
	}
	want := []byte(d.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if !strings.EqualFold(scheme, "Bearer") || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), want) != 1 {
			d.logger().Warn("rejected request for visitor records", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="folio"`)
			httpError(w, http.StatusUnauthorized, "authentication_error", "a valid bearer token is required to read visitor records")
			return
		}
		next.ServeHTTP(w, r)
	})
}
