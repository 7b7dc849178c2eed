package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/logging"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, vLLM, Ollama).
type OpenAIClient struct {
	opts       Options
	httpClient *http.Client
	retry      *retrier
}

// NewOpenAIClient creates an OpenAI-compatible client. A missing API key is
// reported on the first call, not here.
func NewOpenAIClient(opts Options, logger *logging.Logger) *OpenAIClient {
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &OpenAIClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      newRetrier(opts, logger),
	}
}

type openAIRequest struct {
	Model           string          `json:"model"`
	Messages        []openAIMessage `json:"messages"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	Temperature     float64         `json:"temperature"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements Generator.
func (o *OpenAIClient) Generate(ctx context.Context, task Task, messages []Message) (string, error) {
	if o.opts.APIKey == "" {
		return "", ErrMissingCredential
	}

	model := o.opts.Routing.Model(task)
	req := openAIRequest{
		Model:       model,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: temperatureFor(task, o.opts.Temperature),
		Messages:    make([]openAIMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openAIMessage{Role: string(m.Role), Content: m.Content}
	}
	if task == TaskConversation && strings.Contains(model, "gpt-oss") {
		req.ReasoningEffort = o.opts.ReasoningEffort
	}

	return o.retry.do(ctx, task, model, func(ctx context.Context) (string, error) {
		return o.doRequest(ctx, req)
	})
}

func (o *OpenAIClient) doRequest(ctx context.Context, req openAIRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.opts.APIKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openAIError
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return "", classifyStatus(resp.StatusCode, errResp.Error.Message)
		}
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *out.Choices[0].Message.Content, nil
}

var _ Generator = (*OpenAIClient)(nil)
