package huggingchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/api"
)

// maxErrorBody caps how much of a failed response is kept as detail.
const maxErrorBody = 4096

// mapHTTPError converts a non-2xx upstream response into an
// UpstreamUnavailable error. The body is kept as diagnostic detail.
func mapHTTPError(step string, resp *http.Response) *api.APIError {
	detail := ""
	if resp.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail = string(data)
	}
	return api.NewUpstreamUnavailableError(
		fmt.Sprintf("upstream %s failed with HTTP %d", step, resp.StatusCode),
		detail,
	)
}

// mapNetworkError converts a transport failure (connection refused, timeout,
// DNS failure, broken stream) into an UpstreamUnavailable error. Context
// cancellation is returned unchanged so callers can tell a client
// disconnect from an upstream fault.
func mapNetworkError(step string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return api.NewUpstreamUnavailableError(
		fmt.Sprintf("upstream %s connection error", step),
		err.Error(),
	)
}
