// Command mock-backend runs a deterministic HuggingChat emulator serving the
// three endpoints the relay drives. Replies are derived from the prompt and
// written in small chunks that split frames at odd byte offsets.
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_CHUNK_SIZE  - Bytes per body write (default: 7)
//	MOCK_CHUNK_DELAY - Delay between writes, e.g. "20ms" (default: 0)
//	MOCK_NOISE       - Interleave non-token frames when "true"
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhuss/chatrelay/pkg/provider/huggingchat/mockupstream"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	port := envOrDefault("MOCK_PORT", "9090")

	cfg := mockupstream.Config{}
	if v := os.Getenv("MOCK_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid MOCK_CHUNK_SIZE", "error", err)
			os.Exit(1)
		}
		cfg.ChunkSize = n
	}
	if v := os.Getenv("MOCK_CHUNK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_CHUNK_DELAY", "error", err)
			os.Exit(1)
		}
		cfg.ChunkDelay = d
	}
	cfg.Noise = os.Getenv("MOCK_NOISE") == "true"

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mockupstream.New(cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "chunk_size", cfg.ChunkSize, "noise", cfg.Noise)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
