package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/specd/internal/config"
)

// Task selects the model routing policy for a call.
type Task string

const (
	TaskConversation   Task = "conversation"
	TaskExtraction     Task = "extraction"
	TaskClassification Task = "classification"
	TaskDocument       Task = "document"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Generator maps a task and a message list to generated text.
type Generator interface {
	Generate(ctx context.Context, task Task, messages []Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, task Task, messages []Message) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, task Task, messages []Message) (string, error) {
	return f(ctx, task, messages)
}

var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("llm API key not configured (set SPECD_LLM_API_KEY or llm.api_key)")

	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("empty response from model")
)

// GenerationError reports a call that failed after the provider's retries.
type GenerationError struct {
	Task     Task
	Model    string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation with %s failed after %d attempt(s): %v", e.Task, e.Model, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Routing maps tasks to model names.
type Routing struct {
	Conversation   string
	Extraction     string
	Classification string
	Document       string
}

// Model returns the model for t, falling back to the conversation model.
func (r Routing) Model(t Task) string {
	var m string
	switch t {
	case TaskExtraction:
		m = r.Extraction
	case TaskClassification:
		m = r.Classification
	case TaskDocument:
		m = r.Document
	}
	if m == "" {
		return r.Conversation
	}
	return m
}

// Options are the provider-independent client settings.
type Options struct {
	APIKey          string
	BaseURL         string
	Routing         Routing
	Temperature     float64
	MaxTokens       int
	ReasoningEffort string
	Timeout         time.Duration
	MaxRetries      int
	BaseBackoff     time.Duration
	RateLimit       float64
	Burst           int
}

// OptionsFromConfig converts the llm config section.
func OptionsFromConfig(c config.LLMConfig) Options {
	return Options{
		APIKey:  c.APIKey.Value(),
		BaseURL: c.BaseURL,
		Routing: Routing{
			Conversation:   c.ModelConversation,
			Extraction:     c.ModelExtraction,
			Classification: c.ModelClassification,
			Document:       c.ModelDocument,
		},
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		ReasoningEffort: c.ReasoningEffort,
		Timeout:         c.Timeout.Duration(),
		MaxRetries:      c.MaxRetries,
		BaseBackoff:     c.BaseBackoff.Duration(),
		RateLimit:       c.RateLimit,
		Burst:           c.Burst,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = defaultBaseBackoff
	}
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultMaxTokens        = 4096
	defaultTimeout          = 90 * time.Second
	defaultBaseBackoff      = 1 * time.Second

	// 30 requests per minute with small bursts.
	defaultRateLimit = 30.0 / 60.0
	defaultBurst     = 5
)

// temperatureFor lowers the temperature for tasks that must be deterministic.
func temperatureFor(t Task, base float64) float64 {
	switch t {
	case TaskExtraction, TaskClassification:
		return 0
	}
	return base
}
