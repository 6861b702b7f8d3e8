// Package auth provides optional inbound authentication and rate limiting
// for the chat-completions API.
//
// A Chain asks each Authenticator in turn. An authenticator accepts the
// request with an Identity, rejects it, or abstains when it does not
// recognise the credentials; a fallback decision covers the all-abstain case.
// Accepted callers are then counted by a Limiter against their tier.
//
// Middleware wraps the /v1 routes only. Rejections use the same JSON error
// envelope as every other API error, and 429 responses carry Retry-After.
package auth
