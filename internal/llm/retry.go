package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/specd/internal/logging"
)

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	return errors.As(err, &re)
}

// classifyStatus turns a non-200 HTTP status into an error.
func classifyStatus(status int, message string) error {
	message = strings.TrimSpace(message)
	switch {
	case status == http.StatusTooManyRequests:
		return &retryableError{err: fmt.Errorf("rate limited (429): %s", message)}
	case status >= 500:
		return &retryableError{err: fmt.Errorf("server error (%d): %s", status, message)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credential (%d): %s", ErrMissingCredential, status, message)
	default:
		return fmt.Errorf("API error (%d): %s", status, message)
	}
}

// retrier runs one provider call with rate limiting and bounded backoff.
type retrier struct {
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *logging.Logger
}

func newRetrier(o Options, logger *logging.Logger) *retrier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &retrier{
		limiter:     rate.NewLimiter(rate.Limit(o.RateLimit), o.Burst),
		maxRetries:  o.MaxRetries,
		baseBackoff: o.BaseBackoff,
		logger:      logger,
	}
}

// do calls fn until it succeeds, fails permanently, or retries run out. The
// n-th retry waits baseBackoff * 2^(n-1).
func (r *retrier) do(ctx context.Context, task Task, model string, fn func(context.Context) (string, error)) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseBackoff * time.Duration(1<<(attempt-1))
			r.logger.Debug(ctx, "retrying model call",
				zap.String("task", string(task)),
				zap.String("model", model),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attempts++
		text, err := fn(ctx)
		if err == nil {
			text = strings.TrimSpace(text)
			if text != "" {
				return text, nil
			}
			err = &retryableError{err: ErrEmptyResponse}
		}

		lastErr = err
		if errors.Is(err, ErrMissingCredential) {
			return "", err
		}
		if !isRetryableError(err) {
			break
		}
	}

	r.logger.Warn(ctx, "model call failed",
		zap.String("task", string(task)),
		zap.String("model", model),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	return "", &GenerationError{Task: task, Model: model, Attempts: attempts, Err: lastErr}
}
