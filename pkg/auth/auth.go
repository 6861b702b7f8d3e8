package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Abstain means the request carries no credentials this authenticator
	// understands. The chain asks the next one.
	Abstain Decision = iota

	// Accept ends the chain with the identity in the Result.
	Accept

	// Reject ends the chain and the request gets a 401.
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "abstain"
	}
}

// Result is the outcome of one Authenticate call.
type Result struct {
	Decision Decision
	Identity *Identity // set on Accept
	Err      error     // set on Reject
}

// Accepted returns an Accept result for id.
func Accepted(id *Identity) Result { return Result{Decision: Accept, Identity: id} }

// Rejected returns a Reject result. A nil err becomes ErrUnauthenticated.
func Rejected(err error) Result {
	if err == nil {
		err = ErrUnauthenticated
	}
	return Result{Decision: Reject, Err: err}
}

// Abstained returns an Abstain result.
func Abstained() Result { return Result{} }

// Authenticator inspects the credentials on an inbound request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Chain asks its authenticators in order and returns the first vote that is
// not Abstain. When every member abstains the fallback decides: Accept admits
// the caller as Anonymous, anything else rejects.
type Chain struct {
	members  []Authenticator
	fallback Decision
}

// NewChain builds a chain. Fallback Abstain is treated as Reject.
func NewChain(fallback Decision, members ...Authenticator) *Chain {
	return &Chain{members: members, fallback: fallback}
}

// Len returns the number of authenticators in the chain.
func (c *Chain) Len() int { return len(c.members) }

func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, m := range c.members {
		if res := m.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.fallback == Accept {
		return Accepted(Anonymous(r))
	}
	return Rejected(nil)
}
