package debridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanmarkz/promptifi/internal/data"
	"github.com/alanmarkz/promptifi/internal/models"
)

// ErrServiceUnavailable wraps transport and parse failures after retries are
// exhausted. Callers surface it as a generic "service unavailable" message
// rather than leaking transport detail into the chat.
var ErrServiceUnavailable = errors.New("quote service unavailable")

// RemoteError is an explicit rejection from the DLN API, e.g. insufficient
// liquidity or an unsupported pair. Its message is surfaced to the user
// verbatim; the service's own validation is not second-guessed.
type RemoteError struct {
	Code    int    `json:"errorCode"`
	Message string `json:"errorMessage"`
}

func (e *RemoteError) Error() string {
	return e.Message
}

// RetryConfig bounds the retry loop around remote calls.
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	RequestTimeout time.Duration
}

// DefaultRetryConfig retries transient failures a few times with jittered
// exponential backoff. A hung remote call must never stall a chat turn
// indefinitely, so every attempt carries its own timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		BackoffFactor:  2.0,
		RequestTimeout: 15 * time.Second,
	}
}

// Client talks to the DLN order-creation, swap, and token-list endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	cache      *data.Cache
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewClient creates a DLN client. cache may be nil, disabling token-list
// caching.
func NewClient(baseURL string, cache *data.Cache, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retry := DefaultRetryConfig()
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: retry.RequestTimeout},
		retry:      retry,
		cache:      cache,
		logger:     logger.With().Str("component", "debridge").Logger(),
		tracer:     otel.Tracer("debridge"),
	}
}

// SetRetryConfig overrides the default retry policy (tests use tight delays).
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.retry = cfg
	c.httpClient.Timeout = cfg.RequestTimeout
}

// FetchQuote issues a GET against a built order/swap URL and returns the raw
// transaction payload. A remote {errorCode, errorMessage} rejection comes back
// as *RemoteError; transport and parse failures come back wrapped in
// ErrServiceUnavailable after the retry budget is spent.
func (c *Client) FetchQuote(ctx context.Context, url string) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "debridge.FetchQuote",
		trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	// The API reports validation failures in-band with a 200.
	var remoteErr RemoteError
	if err := json.Unmarshal(body, &remoteErr); err == nil && remoteErr.Message != "" {
		return nil, &remoteErr
	}

	var payload json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed quote response: %v", ErrServiceUnavailable, err)
	}
	return payload, nil
}

// tokenListResponse mirrors the token-list endpoint shape: a map keyed by
// token address.
type tokenListResponse struct {
	Tokens map[string]models.TokenDescriptor `json:"tokens"`
}

// TokenList fetches (or serves from cache) the token directory for a chain.
func (c *Client) TokenList(ctx context.Context, chainID int64) (map[string]models.TokenDescriptor, error) {
	cacheKey := fmt.Sprintf(data.TokenListKeyPattern, chainID)
	if c.cache != nil {
		var cached tokenListResponse
		if err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && len(cached.Tokens) > 0 {
			return cached.Tokens, nil
		}
	}

	ctx, span := c.tracer.Start(ctx, "debridge.TokenList",
		trace.WithAttributes(attribute.Int64("chain_id", chainID)))
	defer span.End()

	body, err := c.getWithRetry(ctx, TokenListURL(c.baseURL, chainID))
	if err != nil {
		return nil, err
	}

	var list tokenListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: malformed token list: %v", ErrServiceUnavailable, err)
	}
	if list.Tokens == nil {
		return nil, fmt.Errorf("%w: token list missing tokens field", ErrServiceUnavailable)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, list, data.TokenListTTL); err != nil {
			c.logger.Warn().Err(err).Int64("chain_id", chainID).Msg("failed to cache token list")
		}
	}
	return list.Tokens, nil
}

// getWithRetry runs a GET with bounded, jittered exponential backoff. Only
// transport errors and 5xx/429 responses are retried.
func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	delay := c.retry.InitialDelay

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			// Full jitter keeps retry bursts from synchronizing.
			jittered := time.Duration(rand.Int63n(int64(delay) + 1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, ctx.Err())
			case <-time.After(jittered):
			}
			delay = time.Duration(float64(delay) * c.retry.BackoffFactor)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}

		body, retryable, err := c.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", url).Msg("remote call failed")
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrServiceUnavailable, c.retry.MaxRetries+1, lastErr)
}

func (c *Client) getOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.retry.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, true, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return nil, true, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		// The DLN API reports order validation failures as 400s with the
		// errorCode/errorMessage body; let the caller parse that.
		return body, false, nil
	default:
		return body, false, nil
	}
}
