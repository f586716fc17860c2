// Package config provides unified configuration for the sensei gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SENSEI_ prefix plus the legacy
//     N8N_*, <PROVIDER>_HOST/_PORT/_MODEL/_API_KEY, SECRET_KEY and LOG_LEVEL names)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the sensei gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	N8N           N8NConfig           `yaml:"n8n" envPrefix:"N8N_"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	MCP           MCPConfig           `yaml:"mcp"`

	// Source is the file the configuration was read from, empty when only
	// defaults and the environment were used.
	Source string `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"SENSEI_PORT"`                             // default: 8000
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SENSEI_READ_TIMEOUT"`             // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SENSEI_WRITE_TIMEOUT"`           // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SENSEI_SHUTDOWN_TIMEOUT"`     // default: 15s
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","` // empty disables CORS
}

// ProvidersConfig holds one entry per AI backend plus shared call limits.
type ProvidersConfig struct {
	Llama      ProviderConfig `yaml:"llama" envPrefix:"LLAMA_"`
	LMStudio   ProviderConfig `yaml:"lm_studio" envPrefix:"LM_STUDIO_"`
	Ollama     ProviderConfig `yaml:"ollama" envPrefix:"OLLAMA_"`
	OpenAI     ProviderConfig `yaml:"openai" envPrefix:"OPENAI_"`
	Anthropic  ProviderConfig `yaml:"anthropic" envPrefix:"ANTHROPIC_"`
	OpenRouter ProviderConfig `yaml:"openrouter" envPrefix:"OPENROUTER_"`

	ChatTimeout  time.Duration `yaml:"chat_timeout" env:"SENSEI_CHAT_TIMEOUT"`   // default: 30s
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"SENSEI_PROBE_TIMEOUT"` // default: 5s
}

// ProviderConfig describes how to reach one AI backend.
//
// BaseURL wins when set. Otherwise local backends are addressed as
// http://Host:Port.
type ProviderConfig struct {
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	Host       string `yaml:"host" env:"HOST"`
	Port       int    `yaml:"port" env:"PORT"`
	Model      string `yaml:"model" env:"MODEL"`
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	APIKeyFile string `yaml:"api_key_file" env:"API_KEY_FILE"` // _file variant for api_key
}

// URL returns the effective base URL of the backend, or "" when neither a
// base URL nor a host is configured.
func (p ProviderConfig) URL() string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	if p.Host == "" {
		return ""
	}
	if p.Port == 0 {
		return "http://" + p.Host
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// Named returns the provider entries keyed by their identity string, in the
// fixed probe order.
func (p *ProvidersConfig) Named() []NamedProvider {
	refs := p.refs()
	out := make([]NamedProvider, len(refs))
	for i, r := range refs {
		out[i] = NamedProvider{Name: r.name, Config: *r.cfg}
	}
	return out
}

type providerRef struct {
	name string
	cfg  *ProviderConfig
}

func (p *ProvidersConfig) refs() []providerRef {
	return []providerRef{
		{"llama", &p.Llama},
		{"lm_studio", &p.LMStudio},
		{"ollama", &p.Ollama},
		{"openai", &p.OpenAI},
		{"anthropic", &p.Anthropic},
		{"openrouter", &p.OpenRouter},
	}
}

// NamedProvider pairs a provider identity string with its settings.
type NamedProvider struct {
	Name   string
	Config ProviderConfig
}

// N8NConfig holds the workflow engine connection.
type N8NConfig struct {
	URL        string `yaml:"url" env:"URL"`           // wins over protocol/host/port when set
	Protocol   string `yaml:"protocol" env:"PROTOCOL"` // default: "http"
	Host       string `yaml:"host" env:"HOST"`         // default: "localhost"
	Port       int    `yaml:"port" env:"PORT"`         // default: 5678
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	APIKeyFile string `yaml:"api_key_file" env:"API_KEY_FILE"` // _file variant for api_key

	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"` // default: 30s
}

// RESTURL returns the engine's REST root, always ending in "/rest".
func (n N8NConfig) RESTURL() string {
	base := n.URL
	if base == "" {
		base = fmt.Sprintf("%s://%s:%d", n.Protocol, n.Host, n.Port)
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/rest") {
		return base
	}
	return base + "/rest"
}

// RateLimitConfig holds per-subject sliding-window quotas.
type RateLimitConfig struct {
	General LimitConfig `yaml:"general" envPrefix:"SENSEI_RATELIMIT_GENERAL_"`
	AI      LimitConfig `yaml:"ai" envPrefix:"SENSEI_RATELIMIT_AI_"`
}

// LimitConfig is one quota. MaxRequests <= 0 means unlimited.
type LimitConfig struct {
	MaxRequests int           `yaml:"max_requests" env:"MAX_REQUESTS"`
	Window      time.Duration `yaml:"window" env:"WINDOW"`
}

// StorageConfig holds interaction history settings.
type StorageConfig struct {
	Type      string         `yaml:"type" env:"SENSEI_STORAGE"`            // "memory" or "postgres", default: "memory"
	MaxSize   int            `yaml:"max_size" env:"SENSEI_STORAGE_SIZE"`   // for memory store, default: 10000
	QueueSize int            `yaml:"queue_size" env:"SENSEI_RECORD_QUEUE"` // pending records, default: 256
	Postgres  PostgresConfig `yaml:"postgres" envPrefix:"SENSEI_POSTGRES_"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`
	DSNFile        string `yaml:"dsn_file" env:"DSN_FILE"`                 // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" env:"MAX_CONNS"`               // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type" env:"SENSEI_AUTH_TYPE"` // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"`                    // entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key" json:"key"`
	KeyFile string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string `yaml:"subject" json:"subject"`
}

// JWTConfig holds HS256 bearer token settings.
type JWTConfig struct {
	Secret       string `yaml:"secret" env:"SECRET_KEY"`
	SecretFile   string `yaml:"secret_file" env:"SECRET_KEY_FILE"` // _file variant for secret
	Issuer       string `yaml:"issuer" env:"SENSEI_JWT_ISSUER"`
	Audience     string `yaml:"audience" env:"SENSEI_JWT_AUDIENCE"`
	SubjectClaim string `yaml:"subject_claim"` // default: "sub"
}

// LoggingConfig controls slog output and debug categories.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`           // default: "INFO"
	Format     string `yaml:"format" env:"SENSEI_LOG_FORMAT"`  // "text" or "json", default: "text"
	Categories string `yaml:"categories"`                      // SENSEI_DEBUG wins, see pkg/debug
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"SENSEI_METRICS_ENABLED"` // default: true
	Path    string `yaml:"path"`                                 // default: "/metrics"
}

// TracingConfig holds OpenTelemetry export settings. An empty endpoint
// disables tracing.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"SENSEI_OTEL_ENDPOINT"`         // OTLP/HTTP, e.g. http://localhost:4318
	SampleRatio float64 `yaml:"sample_ratio" env:"SENSEI_OTEL_SAMPLE_RATIO"` // default: 1
}

// MCPConfig controls the Model Context Protocol tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" env:"SENSEI_MCP_ENABLED"` // default: true
	Path    string `yaml:"path"`                             // default: "/mcp"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Providers: ProvidersConfig{
			Llama:        ProviderConfig{Host: "localhost", Port: 11434, Model: "llama2"},
			LMStudio:     ProviderConfig{Host: "localhost", Port: 1234, Model: "local-model"},
			Ollama:       ProviderConfig{Host: "localhost", Port: 11434, Model: "llama3.2:1b"},
			OpenAI:       ProviderConfig{BaseURL: "https://api.openai.com", Model: "gpt-4"},
			Anthropic:    ProviderConfig{BaseURL: "https://api.anthropic.com/v1", Model: "claude-3-sonnet-20240229"},
			OpenRouter:   ProviderConfig{BaseURL: "https://openrouter.ai/api", Model: "anthropic/claude-3-haiku"},
			ChatTimeout:  30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		N8N: N8NConfig{
			Protocol: "http",
			Host:     "localhost",
			Port:     5678,
			Timeout:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			General: LimitConfig{MaxRequests: 1000, Window: time.Hour},
			AI:      LimitConfig{MaxRequests: 100, Window: time.Hour},
		},
		Storage: StorageConfig{
			Type:      "memory",
			MaxSize:   10000,
			QueueSize: 256,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			JWT:  JWTConfig{SubjectClaim: "sub"},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Tracing: TracingConfig{SampleRatio: 1},
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
	}
}
