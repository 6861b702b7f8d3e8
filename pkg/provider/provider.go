package provider

import (
	"context"
	"iter"
)

// Provider abstracts an upstream chat backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// No state may be shared between the streams of different requests.
type Provider interface {
	// Name returns the provider identifier (e.g., "huggingchat").
	Name() string

	// Open starts a fresh single-turn session for req and returns its token
	// stream. Any failure before the first token is returned here; Open
	// never returns a non-nil stream together with an error.
	//
	// The stream is bound to ctx: cancelling ctx releases the upstream
	// connection.
	Open(ctx context.Context, req *Request) (TokenStream, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// Request is one relayed turn.
type Request struct {
	// Model is the resolved canonical model id.
	Model string

	// Prompt is the user text to submit.
	Prompt string
}

// TokenStream is a lazy, forward-only sequence of output tokens.
type TokenStream interface {
	// Tokens yields non-empty tokens in upstream order. It may be ranged
	// over once. A non-nil error is yielded at most once, as the final
	// element, when the stream fails after it started.
	Tokens() iter.Seq2[string, error]

	// Close releases the upstream connection. It is idempotent and safe to
	// call whether or not Tokens was fully consumed.
	Close() error
}
