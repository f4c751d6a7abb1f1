package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"bazaar/pkg/requestcontext"
)

// ClientMetadata extracts client IP, a normalized user agent, and the edge
// country header from the request and stores them as provenance in the
// context. Applied early so provenance reaches every audit entry.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := requestcontext.Provenance{
			IP:        clientIP(r),
			UserAgent: normalizeUserAgent(r.Header.Get("User-Agent")),
			Country:   r.Header.Get("CF-IPCountry"),
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithProvenance(r.Context(), p)))
	})
}

// normalizeUserAgent reduces a raw UA string to "Browser x.y (OS)" so audit
// rows stay comparable across minor build-string churn. Unparseable strings
// pass through untouched.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" (")
		b.WriteString(os)
		b.WriteString(")")
	}
	return b.String()
}

// clientIP resolves the real client IP behind proxies and load balancers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first hop is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}
	return "unknown"
}
