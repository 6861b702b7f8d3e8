package transport

import (
	"context"

	"github.com/rhuss/chatrelay/pkg/api"
)

// CompletionCreator handles the chat-completion operation. The
// implementation receives a decoded request and writes the result (a
// sequence of chunks or one aggregate completion) to the ResponseWriter.
type CompletionCreator interface {
	CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error
}

// CompletionCreatorFunc is an adapter that allows using an ordinary function
// as a CompletionCreator.
type CompletionCreatorFunc func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error

// CreateCompletion calls f(ctx, req, w).
func (f CompletionCreatorFunc) CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ModelLister serves the model listing.
type ModelLister interface {
	Models() []api.Model
}

// ResponseWriter abstracts streaming and non-streaming output for the handler.
// The transport layer creates a ResponseWriter for each request and provides
// it to the handler. The handler uses WriteChunk for incremental responses or
// WriteCompletion for aggregate responses.
//
// WriteChunk and WriteCompletion are mutually exclusive on a single writer
// instance. Calling one after the other returns an error, as does calling
// WriteChunk after a terminal chunk (one carrying a finish reason). Writing
// the terminal chunk also ends the stream with the [DONE] sentinel.
type ResponseWriter interface {
	// WriteChunk sends one incremental chunk.
	WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error

	// WriteCompletion sends a complete aggregate response.
	WriteCompletion(ctx context.Context, c *api.ChatCompletion) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
