package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/contacts/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so import
// runs record who started them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns RemoteAddr without its port. TrustedRealIP has already
// replaced it for requests from trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
