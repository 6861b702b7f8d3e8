// Package noop admits every request without looking at credentials. It backs
// auth type "none" when rate limits are configured, so that anonymous callers
// still get an identity to count against.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/auth"
)

// Authenticator accepts every request as auth.Anonymous. A non-empty Tier
// overrides the default tier of the anonymous identity.
type Authenticator struct {
	Tier string
}

func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	id := auth.Anonymous(r)
	if a.Tier != "" {
		id.ServiceTier = a.Tier
	}
	return auth.Accepted(id)
}
