package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/pkg/observability"
)

// CallbackAuth gates the gateway's server-to-server callback endpoint. The
// callback payload itself is never trusted; this only keeps obvious noise and
// forged pushes away from the verification path.
type CallbackAuth struct {
	allowedIPs map[string]bool
	logger     ports.Logger
}

// NewCallbackAuth creates a callback authenticator from a static allowlist.
// An empty allowlist admits every caller, which is the sandbox default since
// the gateway publishes no fixed callback ranges for test mode.
func NewCallbackAuth(allowedIPs []string, logger ports.Logger) *CallbackAuth {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}
	return &CallbackAuth{
		allowedIPs: allowed,
		logger:     logger,
	}
}

// Middleware wraps a callback handler with source checks
func (a *CallbackAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := a.clientIP(r)
		if !a.allowed(clientIP) {
			a.logger.Warn("callback from unauthorized source",
				ports.String("ip", clientIP),
				ports.String("path", r.URL.Path))
			observability.RecordCallback("rejected")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		a.logger.Debug("callback source accepted",
			ports.String("ip", clientIP),
			ports.String("path", r.URL.Path))
		next(w, r)
	}
}

func (a *CallbackAuth) allowed(ip string) bool {
	if len(a.allowedIPs) == 0 {
		return true
	}
	if a.allowedIPs[ip] {
		return true
	}
	// Local development traffic
	if ip == "127.0.0.1" || ip == "::1" {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsPrivate()
}

// clientIP extracts the originating IP, preferring proxy headers
func (a *CallbackAuth) clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
