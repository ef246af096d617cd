package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// IdentifierUnknown is used when no address can be derived at all.
const IdentifierUnknown = "unknown"

// RequestMeta is the minimal request shape needed to identify a
// caller. Keeping this explicit means the limiter never depends on a
// specific web framework's request type.
type RequestMeta struct {
	Headers    http.Header
	RemoteAddr string
	UserID     string
}

// Identify derives a stable identifier for the caller. Authenticated
// callers get a "user:" prefixed key so their counters never collide
// with anonymous traffic from the same address.
func Identify(meta RequestMeta) string {
	ip := clientIP(meta)

	if meta.UserID != "" {
		if ip == IdentifierUnknown {
			return "user:" + meta.UserID
		}
		return "user:" + meta.UserID + ":" + ip
	}

	return ip
}

// clientIP resolves the caller address: an explicit real-IP header
// wins, then the first hop of a forwarded-for chain, then the
// transport source address. Header lookups are case-insensitive.
func clientIP(meta RequestMeta) string {
	if meta.Headers != nil {
		if realIP := strings.TrimSpace(meta.Headers.Get("X-Real-IP")); realIP != "" {
			return realIP
		}

		if xff := meta.Headers.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
	}

	addr := strings.TrimSpace(meta.RemoteAddr)
	if addr == "" {
		return IdentifierUnknown
	}

	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}

	return addr
}
