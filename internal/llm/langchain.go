package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/specd/internal/logging"
)

// LangChainClient routes calls through a langchaingo model. The model is
// created against an OpenAI-compatible endpoint and the per-task model is
// selected with llms.WithModel on every call.
type LangChainClient struct {
	opts  Options
	model llms.Model
	retry *retrier
}

// NewLangChainClient creates a langchaingo-backed client.
func NewLangChainClient(opts Options, logger *logging.Logger) (*LangChainClient, error) {
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIBaseURL
	}
	c := &LangChainClient{opts: opts, retry: newRetrier(opts, logger)}
	if opts.APIKey == "" {
		return c, nil
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	model, err := openai.New(
		openai.WithToken(opts.APIKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(opts.Routing.Conversation),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain model: %w", err)
	}
	c.model = model
	return c, nil
}

// newLangChainClientWithModel wires an existing langchaingo model.
func newLangChainClientWithModel(opts Options, model llms.Model, logger *logging.Logger) *LangChainClient {
	opts = opts.withDefaults()
	return &LangChainClient{opts: opts, model: model, retry: newRetrier(opts, logger)}
}

// Generate implements Generator.
func (l *LangChainClient) Generate(ctx context.Context, task Task, messages []Message) (string, error) {
	if l.model == nil {
		return "", ErrMissingCredential
	}

	model := l.opts.Routing.Model(task)
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	return l.retry.do(ctx, task, model, func(ctx context.Context) (string, error) {
		resp, err := l.model.GenerateContent(ctx, content,
			llms.WithModel(model),
			llms.WithTemperature(temperatureFor(task, l.opts.Temperature)),
			llms.WithMaxTokens(l.opts.MaxTokens),
		)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// langchaingo does not expose status codes uniformly; treat
			// provider failures as transient and let the retry bound apply.
			return "", &retryableError{err: err}
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Content, nil
	})
}

func chatMessageType(r Role) schema.ChatMessageType {
	switch r {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

var _ Generator = (*LangChainClient)(nil)
