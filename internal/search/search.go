// Package search finds comparable products on the web.
//
// The Jina search API is the only live provider. Search never fails from
// the caller's point of view: any error is logged and yields no results, so
// scoping simply proceeds without citations.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const (
	defaultJinaBaseURL = "https://s.jina.ai"
	defaultTimeout     = 20 * time.Second
	maxResponseBytes   = 4 << 20
)

// New returns the searcher selected by cfg.Provider.
func New(cfg config.SearchConfig, logger *logging.Logger) (workflow.Searcher, error) {
	switch cfg.Provider {
	case "", "jina":
		return NewJinaClient(cfg.BaseURL, cfg.APIKey.Value(), cfg.Timeout.Duration(), logger), nil
	case "none":
		return NoOp{}, nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

// NoOp never finds anything.
type NoOp struct{}

// Search returns no results.
func (NoOp) Search(context.Context, string, int) []workflow.SearchResult { return nil }

// JinaClient queries the Jina search API.
type JinaClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// NewJinaClient creates a Jina search client. Without an API key requests
// are anonymous and subject to Jina's lower rate limits.
func NewJinaClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *JinaClient {
	if baseURL == "" {
		baseURL = defaultJinaBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JinaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
		logger:     logger.Named("search"),
	}
}

type jinaResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type jinaResponse struct {
	Data []jinaResult `json:"data"`
}

// Search returns up to maxResults hits in provider order.
func (c *JinaClient) Search(ctx context.Context, query string, maxResults int) []workflow.SearchResult {
	query = strings.TrimSpace(query)
	if query == "" || maxResults <= 0 {
		return nil
	}

	results, err := c.search(ctx, query)
	if err != nil {
		c.logger.Warn(ctx, "search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	out := make([]workflow.SearchResult, 0, min(len(results), maxResults))
	for _, r := range results {
		if len(out) == maxResults {
			break
		}
		snippet := r.Description
		if strings.TrimSpace(snippet) == "" {
			snippet = r.Content
		}
		out = append(out, workflow.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Snippet: strings.TrimSpace(snippet),
		})
	}
	c.logger.Debug(ctx, "search completed", zap.String("query", query), zap.Int("results", len(out)))
	return out
}

func (c *JinaClient) search(ctx context.Context, query string) ([]jinaResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	q := req.URL.Query()
	q.Add("q", query)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed jinaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return parsed.Data, nil
}

var (
	_ workflow.Searcher = (*JinaClient)(nil)
	_ workflow.Searcher = NoOp{}
)
