// Package config provides configuration loading for specd.
//
// Configuration is read from an optional YAML file and overridden by
// SPECD_-prefixed environment variables. Every section has defaults, so an
// empty environment produces a runnable (if credential-less) configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete specd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Search    SearchConfig    `koanf:"search"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Session   SessionConfig   `koanf:"session"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	Host            string        `koanf:"http_host"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LLMConfig configures the language model collaborator.
//
// Models are routed per task type. The conversation model drives the
// discovery and scoping dialogue, the document model writes the final spec,
// and the small extraction/classification models turn free text into
// structured data.
type LLMConfig struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible API such
	// as Groq), "anthropic", or "langchain".
	Provider string `koanf:"provider"`

	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`

	ModelConversation   string `koanf:"model_conversation"`
	ModelDocument       string `koanf:"model_document"`
	ModelExtraction     string `koanf:"model_extraction"`
	ModelClassification string `koanf:"model_classification"`

	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`

	// ReasoningEffort is sent with conversation requests to reasoning
	// models (gpt-oss family) that accept it: low, medium or high.
	ReasoningEffort string `koanf:"reasoning_effort"`

	Timeout     Duration `koanf:"timeout"`
	MaxRetries  int      `koanf:"max_retries"`
	BaseBackoff Duration `koanf:"base_backoff"`

	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// WorkflowConfig holds the thresholds of the stage state machine.
type WorkflowConfig struct {
	CompletenessThreshold float64  `koanf:"completeness_threshold"`
	MandatoryFields       []string `koanf:"mandatory_fields"`
	MinDiscoveryTurns     int      `koanf:"min_discovery_turns"`
	MaxNegotiationRounds  int      `koanf:"max_negotiation_rounds"`
	SearchMaxResults      int      `koanf:"search_max_results"`
}

// SearchConfig configures the comparable-product search collaborator.
type SearchConfig struct {
	// Provider is "jina" or "none".
	Provider string   `koanf:"provider"`
	BaseURL  string   `koanf:"base_url"`
	APIKey   Secret   `koanf:"api_key"`
	Timeout  Duration `koanf:"timeout"`
}

// SecretsConfig controls credential redaction in user messages.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTL           Duration `koanf:"ttl"`
	MaxSessions   int      `koanf:"max_sessions"`
	SweepInterval Duration `koanf:"sweep_interval"`
}

// EventsConfig configures the NATS event publisher.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig is the file/env facing subset of logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig is the file/env facing subset of telemetry.Config.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
	ServiceName string  `koanf:"service_name"`
}

// Default model routing, tuned for Groq's OpenAI-compatible endpoint.
const (
	DefaultLLMBaseURL          = "https://api.groq.com/openai"
	DefaultModelConversation   = "openai/gpt-oss-20b"
	DefaultModelDocument       = "llama-3.3-70b-versatile"
	DefaultModelExtraction     = "llama-3.1-8b-instant"
	DefaultModelClassification = "llama-3.1-8b-instant"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("session: max_sessions must be >= 1, got %d", c.Session.MaxSessions)
	}
	if c.Session.TTL.Duration() <= 0 {
		return errors.New("session: ttl must be positive")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return errors.New("events: nats_url is required when events are enabled")
	}
	return nil
}

// Validate checks the LLM section. A missing API key is not an error here:
// it surfaces as a configuration error on the first model call so that the
// server can still start and report health.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "anthropic", "langchain":
	default:
		return fmt.Errorf("unsupported provider %q (want openai, anthropic or langchain)", c.Provider)
	}
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %f", c.RateLimit)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", c.Temperature)
	}
	return nil
}

// Validate checks the workflow thresholds.
func (c *WorkflowConfig) Validate() error {
	if c.CompletenessThreshold <= 0 || c.CompletenessThreshold > 1 {
		return fmt.Errorf("completeness_threshold must be in (0,1], got %f", c.CompletenessThreshold)
	}
	if c.MinDiscoveryTurns < 1 {
		return fmt.Errorf("min_discovery_turns must be >= 1, got %d", c.MinDiscoveryTurns)
	}
	if c.MaxNegotiationRounds < 1 {
		return fmt.Errorf("max_negotiation_rounds must be >= 1, got %d", c.MaxNegotiationRounds)
	}
	if c.SearchMaxResults < 0 {
		return fmt.Errorf("search_max_results must be >= 0, got %d", c.SearchMaxResults)
	}
	return nil
}

// Validate checks the search section.
func (c *SearchConfig) Validate() error {
	switch c.Provider {
	case "jina", "none":
	default:
		return fmt.Errorf("unsupported provider %q (want jina or none)", c.Provider)
	}
	return nil
}
