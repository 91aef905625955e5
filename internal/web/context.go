package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// clientIP returns the client address without a port. RemoteAddr has
// already been rewritten by TrustedRealIP for proxied requests.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// withClientInfo attaches the caller's IP and User-Agent for import history.
func withClientInfo(r *http.Request) context.Context {
	return core.ContextWithClient(r.Context(), core.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
}
