package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("error body has no error object")
	}
	return resp.Error
}

func accepting(id *Identity) *Chain {
	return NewChain(Reject, &stubAuthn{result: Accepted(id)})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	h := Middleware(NewChain(Reject), nil, DefaultBypassEndpoints)(okHandler())
	for _, path := range DefaultBypassEndpoints {
		if rec := serve(h, http.MethodGet, path); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddleware_RejectsWithoutCredentials(t *testing.T) {
	h := Middleware(NewChain(Reject), nil, DefaultBypassEndpoints)(okHandler())

	rec := serve(h, http.MethodPost, "/v1/chat/completions")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != api.ErrorTypeAuthentication {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeAuthentication)
	}
}

func TestMiddleware_EmptySubject(t *testing.T) {
	h := Middleware(accepting(&Identity{}), nil, nil)(okHandler())
	if rec := serve(h, http.MethodGet, "/v1/models"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_StoresIdentity(t *testing.T) {
	var got *Identity
	h := Middleware(accepting(&Identity{Subject: "alice", ServiceTier: "gold"}), nil, DefaultBypassEndpoints)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = IdentityFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	if rec := serve(h, http.MethodPost, "/v1/chat/completions"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "alice" {
		t.Errorf("identity in context = %+v, want alice", got)
	}
}

func TestMiddleware_RateLimited(t *testing.T) {
	limiter := NewWindowLimiter(Limits{DefaultRPM: 100, Tiers: map[string]int{"limited": 2}})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }

	h := Middleware(accepting(&Identity{Subject: "alice", ServiceTier: "limited"}), limiter, DefaultBypassEndpoints)(okHandler())

	for i := range 2 {
		if rec := serve(h, http.MethodPost, "/v1/chat/completions"); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	now = start.Add(20500 * time.Millisecond)
	rec := serve(h, http.MethodPost, "/v1/chat/completions")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "40" {
		t.Errorf("Retry-After = %q, want 40", got)
	}
	if apiErr := decodeError(t, rec); apiErr.Type != api.ErrorTypeTooManyRequests {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeTooManyRequests)
	}
}

func TestMiddleware_NoLimiter(t *testing.T) {
	h := Middleware(accepting(&Identity{Subject: "alice"}), nil, DefaultBypassEndpoints)(okHandler())
	for i := range 100 {
		if rec := serve(h, http.MethodPost, "/v1/chat/completions"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestWindowLimiter(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter := NewWindowLimiter(Limits{DefaultRPM: 1})
	limiter.now = func() time.Time { return now }

	alice := &Identity{Subject: "alice"}
	if err := limiter.Allow(t.Context(), alice); err != nil {
		t.Fatalf("first request: %v", err)
	}

	now = start.Add(15 * time.Second)
	err := limiter.Allow(t.Context(), alice)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second request: err = %v, want ErrRateLimited", err)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter != 45*time.Second || rl.Tier != DefaultTier {
		t.Errorf("RateLimitError = %+v, want 45s in tier %q", rl, DefaultTier)
	}

	if err := limiter.Allow(t.Context(), &Identity{Subject: "bob"}); err != nil {
		t.Errorf("other subject: %v", err)
	}

	now = start.Add(time.Minute)
	if err := limiter.Allow(t.Context(), alice); err != nil {
		t.Errorf("after window: %v", err)
	}
}

func TestWindowLimiter_ZeroDisables(t *testing.T) {
	limiter := NewWindowLimiter(Limits{DefaultRPM: 5, Tiers: map[string]int{"free": 0}})
	id := &Identity{Subject: "alice", ServiceTier: "free"}
	for i := range 10 {
		if err := limiter.Allow(t.Context(), id); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("unlimited tier tracked %d windows, want 0", limiter.Len())
	}
}

func TestWindowLimiter_SweepsExpiredWindows(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter := NewWindowLimiter(Limits{DefaultRPM: 10})
	limiter.now = func() time.Time { return now }

	for i := range sweepAt + 1 {
		id := &Identity{Subject: fmt.Sprintf("client-%d", i)}
		if err := limiter.Allow(t.Context(), id); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if limiter.Len() != sweepAt+1 {
		t.Fatalf("Len() = %d, want %d", limiter.Len(), sweepAt+1)
	}

	now = start.Add(2 * time.Minute)
	if err := limiter.Allow(t.Context(), &Identity{Subject: "late"}); err != nil {
		t.Fatalf("late request: %v", err)
	}
	if limiter.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", limiter.Len())
	}
}
