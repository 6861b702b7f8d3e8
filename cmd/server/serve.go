package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatrelay/pkg/config"
	"github.com/rhuss/chatrelay/pkg/debug"
	"github.com/rhuss/chatrelay/pkg/engine"
	"github.com/rhuss/chatrelay/pkg/models"
	"github.com/rhuss/chatrelay/pkg/provider/huggingchat"
	transporthttp "github.com/rhuss/chatrelay/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay HTTP server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv, cleanup, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.ListenAndServe()
}

// newServer wires the provider, model registry, engine and HTTP server from
// the loaded configuration. The returned cleanup releases the provider.
func newServer(cfg *config.Config) (*transporthttp.Server, func(), error) {
	prov, err := huggingchat.New(cfg.Upstream.HuggingChat())
	if err != nil {
		return nil, nil, fmt.Errorf("creating provider: %w", err)
	}
	cleanup := func() { prov.Close() }

	registry, err := models.New(cfg.Models.Registry())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating model registry: %w", err)
	}

	eng, err := engine.New(prov, registry, engine.Config{})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithCORSOrigins(cfg.Server.CORSOrigins),
	}

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path))
	} else {
		opts = append(opts, transporthttp.WithMetricsPath(""))
	}

	authMW, err := buildAuthMiddleware(cfg.Auth)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("configuring authentication: %w", err)
	}
	if authMW != nil {
		opts = append(opts, transporthttp.WithAPIMiddleware(authMW))
	}

	slog.Info("chatrelay configured",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"session_token", debug.Redact(cfg.Upstream.SessionToken),
		"default_model", registry.Default(),
		"models", len(cfg.Models.Canonical),
		"auth", cfg.Auth.Type,
		"debug", debug.Categories(),
	)

	return transporthttp.NewServer(eng, eng, opts...), cleanup, nil
}
