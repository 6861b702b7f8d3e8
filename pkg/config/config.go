// Package config provides unified configuration for the chatrelay server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CHATRELAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/chatrelay/pkg/models"
	"github.com/rhuss/chatrelay/pkg/provider/huggingchat"
)

// Config holds all configuration for the chatrelay server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Models        ModelsConfig        `yaml:"models"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`

	LogLevel string `yaml:"log_level"` // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Debug    string `yaml:"debug"`     // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams are unbounded)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
	CORSOrigins     []string      `yaml:"cors_origins"`     // default: ["*"]
}

// UpstreamConfig holds settings for the conversational backend.
type UpstreamConfig struct {
	BaseURL          string        `yaml:"base_url"`           // default: https://huggingface.co
	SessionToken     string        `yaml:"session_token"`      // optional; random per request when empty
	SessionTokenFile string        `yaml:"session_token_file"` // _file variant for session_token
	Timeout          time.Duration `yaml:"timeout"`            // per bootstrap call, default: 60s
	UserAgent        string        `yaml:"user_agent"`
}

// ModelsConfig holds the model table. When canonical is empty the built-in
// table is used. A configured alias map replaces the built-in one.
type ModelsConfig struct {
	Default   string              `yaml:"default"`
	Canonical []string            `yaml:"canonical"`
	Aliases   map[string][]string `yaml:"aliases"`
}

// Registry converts the table into a models.Config.
func (m ModelsConfig) Registry() models.Config {
	return models.Config{
		Default:   m.Default,
		Canonical: m.Canonical,
		Aliases:   m.Aliases,
	}
}

// AuthConfig holds inbound authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "jwt"; default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds HMAC JWT validation settings.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	UserClaim  string `yaml:"user_claim"` // default: "sub"
	TierClaim  string `yaml:"tier_claim"` // default: "tier"
}

// RateLimitConfig holds per-tier request limits. Zero disables limiting.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"` // tier name -> requests per minute
}

// Defaults returns a Config with all default values filled in. The model
// table is filled in by Load after the config file is read.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
			CORSOrigins:     []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL:   huggingchat.DefaultBaseURL,
			Timeout:   60 * time.Second,
			UserAgent: huggingchat.DefaultUserAgent,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		LogLevel: "INFO",
	}
}

// applyModelDefaults fills the model table from the built-in one when the
// configuration names no canonical models. A default left empty becomes the
// first canonical id.
func applyModelDefaults(m *ModelsConfig) {
	if len(m.Canonical) == 0 {
		builtin := models.DefaultConfig()
		m.Canonical = builtin.Canonical
		if m.Aliases == nil {
			m.Aliases = builtin.Aliases
		}
		if m.Default == "" {
			m.Default = builtin.Default
		}
	}
	if m.Default == "" {
		m.Default = m.Canonical[0]
	}
}

// HuggingChat converts the upstream section into the adapter config.
func (u UpstreamConfig) HuggingChat() huggingchat.Config {
	return huggingchat.Config{
		BaseURL:      u.BaseURL,
		SessionToken: u.SessionToken,
		Timeout:      u.Timeout,
		UserAgent:    u.UserAgent,
	}
}
