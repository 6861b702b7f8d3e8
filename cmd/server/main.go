// Command server runs the chatrelay gateway, which exposes the HuggingChat
// web backend as an OpenAI-compatible chat-completions API.
//
// Configuration is read from a YAML file (--config, CHATRELAY_CONFIG,
// ./config.yaml or /etc/chatrelay/config.yaml) and CHATRELAY_* environment
// variables. A .env file in the working directory is loaded first when present.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rhuss/chatrelay/pkg/config"
	"github.com/rhuss/chatrelay/pkg/debug"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "OpenAI-compatible relay for the HuggingChat web backend",
	Long: `chatrelay accepts OpenAI-style chat-completion requests, drives a
fresh HuggingChat conversation for each one and relays the generated
tokens back as a single completion or as server-sent events.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: discovered)")
	rootCmd.AddCommand(serveCmd, modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the .env file, the layered configuration and applies
// the logging settings.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if unknown := debug.Setup(cfg.Debug, cfg.LogLevel, os.Stderr); len(unknown) > 0 {
		slog.Warn("ignoring unknown debug categories", "categories", unknown, "known", debug.Known)
	}
	return cfg, nil
}
