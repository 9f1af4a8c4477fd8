package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
)

// LLMRetryConfig configures retry behavior for model calls.
type LLMRetryConfig struct {
	MaxRetries      int           `json:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor"`
	TimeoutPerRetry time.Duration `json:"timeout_per_retry"`
}

// DefaultLLMRetryConfig returns a sensible default configuration.
func DefaultLLMRetryConfig() LLMRetryConfig {
	return LLMRetryConfig{
		MaxRetries:      3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		TimeoutPerRetry: 60 * time.Second,
	}
}

// llmRetryWrapper wraps a model with retry logic for transient failures.
type llmRetryWrapper struct {
	llm    llms.Model
	config LLMRetryConfig
	logger zerolog.Logger
}

func newLLMRetryWrapper(llm llms.Model, config LLMRetryConfig, logger zerolog.Logger) *llmRetryWrapper {
	return &llmRetryWrapper{
		llm:    llm,
		config: config,
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// GenerateContent calls the model, retrying transient failures with
// exponential backoff. Each attempt carries its own timeout.
func (w *llmRetryWrapper) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var lastErr error
	delay := w.config.InitialDelay

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		retryCtx, cancel := context.WithTimeout(ctx, w.config.TimeoutPerRetry)
		response, err := w.llm.GenerateContent(retryCtx, messages, options...)
		cancel()

		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt >= w.config.MaxRetries {
			break
		}
		if !isRetryableError(err) {
			w.logger.Debug().Err(err).Msg("model error is not retryable")
			break
		}

		w.logger.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("model call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * w.config.BackoffFactor)
		if delay > w.config.MaxDelay {
			delay = w.config.MaxDelay
		}
	}

	return nil, fmt.Errorf("model call failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}

// isRetryableError determines if an error is worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "context deadline exceeded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "temporary failure") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "server error") ||
		strings.Contains(errStr, "service unavailable") {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableError(urlErr.Err)
	}

	return false
}
