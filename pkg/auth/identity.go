package auth

import (
	"context"
	"net"
	"net/http"
)

// DefaultTier is the rate-limit tier for callers without one.
const DefaultTier = "default"

// AnonymousSubject prefixes the subject of callers admitted without credentials.
const AnonymousSubject = "anonymous"

// Identity is an authenticated caller of the relay.
type Identity struct {
	Subject     string
	ServiceTier string
	Scopes      []string
	Metadata    map[string]string
}

// Tier returns the service tier, or DefaultTier when none is set.
func (id *Identity) Tier() string {
	if id == nil || id.ServiceTier == "" {
		return DefaultTier
	}
	return id.ServiceTier
}

// Anonymous returns the identity for a caller without credentials. Each
// client host gets its own subject so that rate limits apply per client
// rather than to all anonymous traffic at once.
func Anonymous(r *http.Request) *Identity {
	subject := AnonymousSubject
	if r != nil && r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		subject += ":" + host
	}
	return &Identity{Subject: subject, ServiceTier: DefaultTier}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by the auth middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
