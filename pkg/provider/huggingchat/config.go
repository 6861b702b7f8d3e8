package huggingchat

import "time"

// DefaultBaseURL is the public HuggingChat host.
const DefaultBaseURL = "https://huggingface.co"

// DefaultUserAgent is sent on every upstream call.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config holds configuration for the HuggingChat adapter.
type Config struct {
	// BaseURL is the backend origin (e.g., "https://huggingface.co").
	BaseURL string

	// SessionToken is sent as the hf-chat cookie. When empty, a fresh
	// random token is generated per request.
	SessionToken string

	// Timeout bounds each bootstrap round trip. The token stream itself is
	// bounded only by the request context. Defaults to 60s.
	Timeout time.Duration

	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Timeout:   60 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}
