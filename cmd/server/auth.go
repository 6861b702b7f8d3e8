package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/auth"
	"github.com/rhuss/chatrelay/pkg/auth/apikey"
	"github.com/rhuss/chatrelay/pkg/auth/jwt"
	"github.com/rhuss/chatrelay/pkg/auth/noop"
	"github.com/rhuss/chatrelay/pkg/config"
)

// buildAuthMiddleware returns the /v1 middleware for the auth section, or
// nil when neither authentication nor rate limiting is configured.
func buildAuthMiddleware(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var limiter auth.Limiter
	if cfg.RateLimit.DefaultRPM > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewWindowLimiter(auth.Limits{
			DefaultRPM: cfg.RateLimit.DefaultRPM,
			Tiers:      cfg.RateLimit.Tiers,
		})
	}

	var authn auth.Authenticator
	switch cfg.Type {
	case "", "none":
		if limiter == nil {
			return nil, nil
		}
		authn = &noop.Authenticator{}

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			})
		}
		authn = apikey.New(entries)

	case "jwt":
		v, err := jwt.New(jwt.Config{
			Secret:    []byte(cfg.JWT.Secret),
			Issuer:    cfg.JWT.Issuer,
			Audience:  cfg.JWT.Audience,
			UserClaim: cfg.JWT.UserClaim,
			TierClaim: cfg.JWT.TierClaim,
		})
		if err != nil {
			return nil, err
		}
		authn = v

	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}

	slog.Info("authentication enabled", "type", cfg.Type, "rate_limited", limiter != nil)
	return auth.Middleware(auth.NewChain(auth.Reject, authn), limiter, auth.DefaultBypassEndpoints), nil
}
