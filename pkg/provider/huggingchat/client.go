package huggingchat

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/observability"
)

// sessionCookie is the cookie carrying the session token.
const sessionCookie = "hf-chat"

// Client performs the raw HTTP calls against the backend. It is safe for
// concurrent use; per-request state lives in [Session].
type Client struct {
	baseURL   string
	userAgent string

	// http is used for the bootstrap calls and carries the step timeout.
	http *http.Client

	// stream is used for the message submission whose body is the token
	// stream. It has no timeout; the request context bounds it.
	stream *http.Client
}

// NewClient creates a Client. A nil transport selects http.DefaultTransport.
func NewClient(cfg Config, transport http.RoundTripper) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		stream: &http.Client{
			Transport: transport,
		},
	}
}

// conversationURL returns the URL of a conversation, or of the conversation
// collection when id is empty.
func (c *Client) conversationURL(id string) string {
	if id == "" {
		return c.baseURL + "/chat/conversation"
	}
	return c.baseURL + "/chat/conversation/" + id
}

// newRequest builds a request carrying the browser-like headers and the
// session cookie the backend expects.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, sess *Session) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	referer := c.baseURL + "/chat/"
	if sess.ConversationID != "" {
		referer = c.conversationURL(sess.ConversationID)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", referer)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sess.Token})
	return req, nil
}

// do sends req and records the step's metrics. A non-2xx status is mapped
// to an error and the body is closed.
func (c *Client) do(hc *http.Client, step string, req *http.Request) (*http.Response, error) {
	debug.Log(debug.Upstream, "request", "step", step, "method", req.Method, "url", req.URL.String())

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		observability.ObserveUpstream(step, 0, time.Since(start))
		debug.Log(debug.Upstream, "request failed", "step", step, "error", err.Error())
		return nil, mapNetworkError(step, err)
	}
	observability.ObserveUpstream(step, resp.StatusCode, time.Since(start))
	debug.Log(debug.Upstream, "response", "step", step, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, mapHTTPError(step, resp)
	}
	return resp, nil
}
