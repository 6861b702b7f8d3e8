package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/observability"
	"github.com/rhuss/chatrelay/pkg/transport"
)

// Adapter serves the chat-completions API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	creator  transport.CompletionCreator
	models   transport.ModelLister
	inflight *transport.InFlightRegistry
	router   chi.Router
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// CORSOrigins lists allowed origins. "*" allows any origin; empty
	// disables CORS headers.
	CORSOrigins []string

	// MetricsPath mounts the Prometheus handler when non-empty.
	MetricsPath string

	// APIMiddleware wraps the /v1 routes only (e.g. authentication).
	// Health and metrics endpoints are never wrapped.
	APIMiddleware []func(http.Handler) http.Handler
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		CORSOrigins: []string{"*"},
		MetricsPath: "/metrics",
	}
}

// NewAdapter creates an HTTP adapter with the given CompletionCreator and
// ModelLister. Middleware is applied to the CompletionCreator in the given
// order.
func NewAdapter(creator transport.CompletionCreator, models transport.ModelLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		creator:  creator,
		models:   models,
		inflight: transport.NewInFlightRegistry(),
		config:   cfg,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httpRequestIDMiddleware)
	r.Use(observability.MetricsMiddleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleHealth)
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		for _, mw := range cfg.APIMiddleware {
			r.Use(mw)
		}
		r.Get("/models", a.handleListModels)
		r.Post("/chat/completions", a.handleCreateCompletion)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteErrorResponse(w,
			api.NewInvalidInputError("", fmt.Sprintf("unknown endpoint %s %s", r.Method, r.URL.Path)),
			http.StatusNotFound,
		)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		transport.WriteErrorResponse(w,
			api.NewInvalidInputError("", fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path)),
			http.StatusMethodNotAllowed,
		)
	})

	a.router = r
	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// InFlight returns the registry of open incremental streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware honors an incoming X-Request-ID header or
// generates a new ID, stores it in the request context for the
// transport-level RequestID middleware, and echoes it on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	list := api.ModelList{Object: api.ObjectList, Data: a.models.Models()}
	if list.Data == nil {
		list.Data = []api.Model{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// handleCreateCompletion handles POST /v1/chat/completions.
func (a *Adapter) handleCreateCompletion(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidInputError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidInputError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidInputError("body", "invalid JSON: "+err.Error()))
		return
	}

	if req.Stream {
		a.handleStreamingCompletion(r.Context(), w, &req)
		return
	}

	rw := newSSEResponseWriter(w)
	if err := a.creator.CreateCompletion(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreamingCompletion handles POST requests with stream: true. The
// stream is registered in the in-flight registry for its whole lifetime,
// bootstrap included, so that shutdown can release the upstream connection.
// The registry key is generated here; the X-Request-ID header is client
// supplied and need not be unique.
func (a *Adapter) handleStreamingCompletion(ctx context.Context, w http.ResponseWriter, req *api.ChatCompletionRequest) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := observability.TrackStream()
	defer done()

	key := uuid.NewString()
	a.inflight.Register(key, cancel)
	defer a.inflight.Remove(key)

	rw := newSSEResponseWriter(w)
	if err := a.creator.CreateCompletion(ctx, req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// writeHandlerError writes an error response from the handler. If streaming
// has already started, it sends an error event and ends the stream without
// the [DONE] sentinel. Otherwise it writes a standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr := api.AsAPIError(err)

	if rw.hasStartedStreaming() {
		if werr := rw.writeError(apiErr); werr != nil {
			debug.Log(debug.Streaming, "error event not delivered", "error", werr)
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}
