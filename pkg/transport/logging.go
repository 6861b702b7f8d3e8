package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// request. The log entry includes the requested model, the stream flag,
// duration, request ID (from context), and whether the request succeeded
// or failed. Client errors are logged at WARN, everything else at ERROR.
//
// Note: The HTTP method and path are not available at the CompletionCreator
// level. This middleware logs at the handler level. For full HTTP-level
// logging (including status codes), use HTTP-level middleware in the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next CompletionCreator) CompletionCreator {
		return CompletionCreatorFunc(func(ctx context.Context, req *api.ChatCompletionRequest, w ResponseWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateCompletion(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if errors.Is(err, context.Canceled) {
				logger.LogAttrs(ctx, slog.LevelInfo, "request cancelled", attrs...)
			} else if err != nil {
				apiErr := api.AsAPIError(err)
				attrs = append(attrs, slog.String("error", err.Error()))
				if apiErr.Detail != "" {
					attrs = append(attrs, slog.String("detail", apiErr.Detail))
				}
				level := slog.LevelError
				if apiErr.Type == api.ErrorTypeInvalidRequest {
					level = slog.LevelWarn
				}
				logger.LogAttrs(ctx, level, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}

			return err
		})
	}
}
