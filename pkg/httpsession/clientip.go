package httpsession

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the client address of r.
// Proxy headers are checked first: CF-Connecting-IP, X-Forwarded-For (first
// valid entry), X-Real-IP. RemoteAddr is the fallback.
func ClientIP(r *http.Request) string {
	if ip := normalizeIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for part := range strings.SplitSeq(forwarded, ",") {
			if ip := normalizeIP(part); ip != "" {
				return ip
			}
		}
	}

	if ip := normalizeIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalizeIP(r.RemoteAddr)
	}
	return normalizeIP(host)
}

// normalizeIP returns the canonical form of s, or "" if s is not an IP
func normalizeIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
