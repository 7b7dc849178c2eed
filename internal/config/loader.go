package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment variables before mapping.
	EnvPrefix = "SPECD_"
)

// booleanDefaults seeds switches whose default is on. Zero-value checks in
// applyDefaults cannot tell an unset bool from an explicit false.
const booleanDefaults = `
secrets:
  enabled: true
`

// Load loads configuration from the YAML file at configPath (or the default
// path when empty), then overrides it with environment variables.
//
// Precedence, highest first:
//  1. SPECD_* environment variables
//  2. YAML config file (~/.config/specd/config.yaml)
//  3. Defaults
//
// A missing file is not an error. An existing file must have 0600 or 0400
// permissions and be at most 1MB.
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix:
//
//	SPECD_LLM_API_KEY            -> llm.api_key
//	SPECD_WORKFLOW_MIN_DISCOVERY_TURNS -> workflow.min_discovery_turns
//	SPECD_SERVER_HTTP_PORT       -> server.http_port
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(booleanDefaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration produced by an empty file and
// environment.
func Default() *Config {
	cfg := Config{Secrets: SecretsConfig{Enabled: true}}
	applyDefaults(&cfg)
	return &cfg
}

// DefaultDir returns ~/.config/specd.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "specd"), nil
}

// envKey maps SPECD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Stat the open descriptor to avoid a TOCTOU race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	llm := &cfg.LLM
	if llm.Provider == "" {
		llm.Provider = "openai"
	}
	if llm.BaseURL == "" && llm.Provider == "openai" {
		llm.BaseURL = DefaultLLMBaseURL
	}
	if llm.ModelConversation == "" {
		llm.ModelConversation = DefaultModelConversation
	}
	if llm.ModelDocument == "" {
		llm.ModelDocument = DefaultModelDocument
	}
	if llm.ModelExtraction == "" {
		llm.ModelExtraction = DefaultModelExtraction
	}
	if llm.ModelClassification == "" {
		llm.ModelClassification = DefaultModelClassification
	}
	if llm.Temperature == 0 {
		llm.Temperature = 0.7
	}
	if llm.MaxTokens == 0 {
		llm.MaxTokens = 4096
	}
	if llm.ReasoningEffort == "" {
		llm.ReasoningEffort = "medium"
	}
	if llm.Timeout == 0 {
		llm.Timeout = Duration(90 * time.Second)
	}
	if llm.MaxRetries == 0 {
		llm.MaxRetries = 3
	}
	if llm.BaseBackoff == 0 {
		llm.BaseBackoff = Duration(time.Second)
	}
	if llm.RateLimit == 0 {
		llm.RateLimit = 30.0 / 60.0
	}
	if llm.Burst == 0 {
		llm.Burst = 5
	}

	wf := &cfg.Workflow
	if wf.CompletenessThreshold == 0 {
		wf.CompletenessThreshold = 0.75
	}
	if len(wf.MandatoryFields) == 0 {
		wf.MandatoryFields = []string{"target_user", "core_problem"}
	}
	if wf.MinDiscoveryTurns == 0 {
		wf.MinDiscoveryTurns = 4
	}
	if wf.MaxNegotiationRounds == 0 {
		wf.MaxNegotiationRounds = 3
	}
	if wf.SearchMaxResults == 0 {
		wf.SearchMaxResults = 5
	}

	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "jina"
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "https://s.jina.ai"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = Duration(20 * time.Second)
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = Duration(2 * time.Hour)
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 1000
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = Duration(5 * time.Minute)
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "specd"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "specd"
	}
}
