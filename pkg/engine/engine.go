package engine

import (
	"context"
	"fmt"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/models"
	"github.com/rhuss/chatrelay/pkg/provider"
	"github.com/rhuss/chatrelay/pkg/transport"
)

// Engine orchestrates request processing between the transport layer
// and the provider backend. It implements transport.CompletionCreator and
// transport.ModelLister.
type Engine struct {
	provider provider.Provider
	registry *models.Registry
	cfg      Config
}

// Ensure Engine implements the transport contracts at compile time.
var (
	_ transport.CompletionCreator = (*Engine)(nil)
	_ transport.ModelLister       = (*Engine)(nil)
)

// New creates a new Engine. The provider and registry must not be nil.
func New(p provider.Provider, registry *models.Registry, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: model registry must not be nil")
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	return &Engine{
		provider: p,
		registry: registry,
		cfg:      cfg,
	}, nil
}

// CreateCompletion relays one chat turn. Model resolution and input
// validation happen before any upstream call, so client errors never
// cost an upstream session.
func (e *Engine) CreateCompletion(ctx context.Context, req *api.ChatCompletionRequest, w transport.ResponseWriter) error {
	model, err := e.registry.Resolve(req.Model)
	if err != nil {
		return err
	}

	prompt, apiErr := api.ValidateRequest(req, e.cfg.Validation)
	if apiErr != nil {
		return apiErr
	}

	debug.Log(debug.Engine, "relaying completion",
		"requested", req.Model,
		"model", model,
		"stream", req.Stream,
		"prompt_len", len(prompt),
	)

	stream, err := e.provider.Open(ctx, &provider.Request{Model: model, Prompt: prompt})
	if err != nil {
		return err
	}
	defer stream.Close()

	r := newRenderer(model, e.cfg.now())
	if req.Stream {
		return r.incremental(ctx, stream, w)
	}
	return r.aggregate(ctx, stream, w)
}

// Models returns the advertised model list.
func (e *Engine) Models() []api.Model {
	return e.registry.Models()
}
