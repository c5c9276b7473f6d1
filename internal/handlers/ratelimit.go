package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/vidshare/backend/internal/models"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest limits anonymous endpoints per client address within scope.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(scope + ":ip:" + clientAddr(r))
}

// allowCaller limits authenticated actions per account rather than per address.
func allowCaller(limiter RateLimiter, scope string, caller models.Caller) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(scope + ":account:" + caller.AccountID)
}

// clientAddr prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer
// address. Header values that are not IP addresses are ignored.
func clientAddr(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); first != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
