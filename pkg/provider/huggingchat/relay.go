package huggingchat

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/frame"
	"github.com/rhuss/chatrelay/pkg/observability"
	"github.com/rhuss/chatrelay/pkg/provider"
)

// readBufferSize is the size of each upstream body read.
const readBufferSize = 4096

// errConsumed is yielded when Tokens is ranged over a second time.
var errConsumed = errors.New("huggingchat: token stream already consumed")

// Stream relays the tokens of one upstream event stream. It owns the
// response body and the frame scanner; neither is shared.
type Stream struct {
	ctx   context.Context
	body  io.ReadCloser
	model string
	sess  *Session

	scanner  frame.Scanner
	consumed bool

	closeOnce sync.Once
	closeErr  error
}

// Ensure Stream implements provider.TokenStream at compile time.
var _ provider.TokenStream = (*Stream)(nil)

// NewStream wraps an upstream event stream body. model is used for metrics
// only. sess may be nil.
func NewStream(ctx context.Context, body io.ReadCloser, model string, sess *Session) *Stream {
	return &Stream{ctx: ctx, body: body, model: model, sess: sess}
}

// Tokens yields the non-empty output tokens in upstream order. Production
// ends successfully at the first finalAnswer event or at the end of the
// body. A read failure is yielded as a final UpstreamUnavailable error, or
// as the context error when the request was cancelled. The body is closed
// on every exit path, including when the consumer stops early.
func (s *Stream) Tokens() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.consumed {
			yield("", errConsumed)
			return
		}
		s.consumed = true
		defer s.Close()

		tokens := observability.TokensTotal.WithLabelValues(s.model)
		buf := make([]byte, readBufferSize)

		for {
			n, err := s.body.Read(buf)
			if n > 0 {
				for _, obj := range s.scanner.Feed(buf[:n]) {
					ev := Classify(obj)
					debug.Frame(ev.Kind.String(), obj)
					switch ev.Kind {
					case EventToken:
						if ev.Text == "" {
							continue
						}
						tokens.Inc()
						if !yield(ev.Text, nil) {
							return
						}
					case EventFinalAnswer:
						debug.Log(debug.Frames, "final answer received", "model", s.model)
						return
					case EventUnknown:
						if ev.Malformed {
							observability.FramesSkippedTotal.Inc()
							debug.SkippedFrame(obj)
						}
					}
				}
			}

			if errors.Is(err, io.EOF) {
				debug.Log(debug.Upstream, "upstream stream ended", "model", s.model, "pending_bytes", len(s.scanner.Remainder()))
				return
			}
			if err != nil {
				if ctxErr := s.ctx.Err(); ctxErr != nil {
					yield("", ctxErr)
					return
				}
				yield("", api.NewUpstreamUnavailableError("upstream stream interrupted", err.Error()))
				return
			}
		}
	}
}

// Close releases the upstream body. It is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Session returns the upstream session the stream belongs to, or nil.
func (s *Stream) Session() *Session {
	return s.sess
}
