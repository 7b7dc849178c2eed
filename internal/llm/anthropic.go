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

const anthropicVersion = "2023-06-01"

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	opts       Options
	httpClient *http.Client
	retry      *retrier
}

// NewAnthropicClient creates an Anthropic client.
func NewAnthropicClient(opts Options, logger *logging.Logger) *AnthropicClient {
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAnthropicBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &AnthropicClient{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      newRetrier(opts, logger),
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator. System messages are hoisted into the
// request's system field; the Messages API does not accept them inline.
func (a *AnthropicClient) Generate(ctx context.Context, task Task, messages []Message) (string, error) {
	if a.opts.APIKey == "" {
		return "", ErrMissingCredential
	}

	model := a.opts.Routing.Model(task)
	req := anthropicRequest{
		Model:       model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: temperatureFor(task, a.opts.Temperature),
	}
	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	req.System = strings.Join(system, "\n\n")
	if len(req.Messages) == 0 {
		// The API requires at least one user turn.
		req.Messages = []anthropicMessage{{Role: string(RoleUser), Content: "Begin."}}
	}

	return a.retry.do(ctx, task, model, func(ctx context.Context) (string, error) {
		return a.doRequest(ctx, req)
	})
}

func (a *AnthropicClient) doRequest(ctx context.Context, req anthropicRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.BaseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.opts.APIKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
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
		var errResp anthropicError
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return "", classifyStatus(resp.StatusCode, errResp.Error.Message)
		}
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var out anthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

var _ Generator = (*AnthropicClient)(nil)
