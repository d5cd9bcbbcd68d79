package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/walkthrough/walkthrough/internal/api/models"
)

// LoopbackHosts are the Host values accepted by a locally bound server.
var LoopbackHosts = []string{"localhost", "127.0.0.1", "::1"}

// SecurityHeaders adds standard security headers to all HTTP responses.
// Headers set:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: no-referrer
//   - Cache-Control: no-store
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		// Responses carry the walker's position and session state.
		h.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// AllowHosts rejects requests whose Host header is not one of hosts, which
// stops DNS rebinding against a server bound to loopback. The port is
// ignored. An empty list allows every host.
func AllowHosts(hosts ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[hostOnly(r.Host)]; !ok {
				problem := models.NewProblem(
					"https://walkthrough.app/problems/host-not-allowed",
					"Host not allowed",
					http.StatusForbidden,
					GetRequestID(r.Context()),
				)
				problem.Detail = "the local API only answers loopback requests"
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostOnly(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
