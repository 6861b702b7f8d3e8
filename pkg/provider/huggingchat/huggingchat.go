package huggingchat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/provider"
)

// Provider implements provider.Provider against the HuggingChat backend.
type Provider struct {
	cfg    Config
	client *Client
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a Provider. Returns an error if the configuration is invalid.
func New(cfg Config) (*Provider, error) {
	return NewWithTransport(cfg, nil)
}

// NewWithTransport creates a Provider using the given HTTP transport.
func NewWithTransport(cfg Config, transport http.RoundTripper) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("huggingchat: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("huggingchat: BaseURL must be an absolute http(s) URL, got %q", cfg.BaseURL)
	}

	return &Provider{
		cfg:    cfg,
		client: NewClient(cfg, transport),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "huggingchat"
}

// Open bootstraps a fresh conversation for req and returns its token stream.
func (p *Provider) Open(ctx context.Context, req *provider.Request) (provider.TokenStream, error) {
	sess := NewSession(p.cfg.SessionToken)
	debug.Log(debug.Upstream, "opening session", "model", req.Model, "token", debug.Redact(sess.Token))

	body, err := p.client.Bootstrap(ctx, sess, req.Model, req.Prompt)
	if err != nil {
		return nil, err
	}

	if err := sess.advance(StateStreaming); err != nil {
		body.Close()
		return nil, err
	}
	return NewStream(ctx, body, req.Model, sess), nil
}

// Close releases idle upstream connections.
func (p *Provider) Close() error {
	p.client.http.CloseIdleConnections()
	return nil
}
