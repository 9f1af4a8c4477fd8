package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanmarkz/promptifi/internal/data"
	"github.com/alanmarkz/promptifi/internal/models"
)

// DefaultBaseURL is the hosted CoinMarketCap Pro API endpoint.
const DefaultBaseURL = "https://pro-api.coinmarketcap.com"

// quoteResponse mirrors /v2/cryptocurrency/quotes/latest.
type quoteResponse struct {
	Status struct {
		Timestamp    string `json:"timestamp"`
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		ID                int64   `json:"id"`
		Name              string  `json:"name"`
		Symbol            string  `json:"symbol"`
		Slug              string  `json:"slug"`
		CirculatingSupply float64 `json:"circulating_supply"`
		TotalSupply       float64 `json:"total_supply"`
		Quote             map[string]struct {
			Price            float64 `json:"price"`
			Volume24h        float64 `json:"volume_24h"`
			PercentChange1h  float64 `json:"percent_change_1h"`
			PercentChange24h float64 `json:"percent_change_24h"`
			PercentChange7d  float64 `json:"percent_change_7d"`
			MarketCap        float64 `json:"market_cap"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

// Client fetches market quotes from the CoinMarketCap API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *data.Cache
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewClient creates a market-quote client. cache may be nil.
func NewClient(baseURL, apiKey string, cache *data.Cache, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		logger:     logger.With().Str("component", "market").Logger(),
		tracer:     otel.Tracer("market"),
	}
}

// Quotes fetches the latest USD quotes for a set of market ids.
func (c *Client) Quotes(ctx context.Context, ids []int64) (map[int64]*models.TokenQuote, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("market API key not configured")
	}
	if len(ids) == 0 {
		return map[int64]*models.TokenQuote{}, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}
	joined := strings.Join(idStrs, ",")

	cacheKey := fmt.Sprintf(data.QuoteKeyPattern, joined)
	if c.cache != nil {
		cached := map[int64]*models.TokenQuote{}
		if err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	ctx, span := c.tracer.Start(ctx, "market.Quotes",
		trace.WithAttributes(attribute.String("ids", joined)))
	defer span.End()

	params := url.Values{}
	params.Set("id", joined)
	reqURL := c.baseURL + "/v2/cryptocurrency/quotes/latest?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse quote response: %w", err)
	}
	if parsed.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("market API error: %s", parsed.Status.ErrorMessage)
	}

	quotes := make(map[int64]*models.TokenQuote, len(parsed.Data))
	for _, entry := range parsed.Data {
		usd, ok := entry.Quote["USD"]
		if !ok {
			continue
		}
		lastUpdated, _ := time.Parse(time.RFC3339, usd.LastUpdated)
		quotes[entry.ID] = &models.TokenQuote{
			ID:                entry.ID,
			Name:              entry.Name,
			Symbol:            entry.Symbol,
			Slug:              entry.Slug,
			Price:             usd.Price,
			PercentChange1h:   usd.PercentChange1h,
			PercentChange24h:  usd.PercentChange24h,
			PercentChange7d:   usd.PercentChange7d,
			MarketCap:         usd.MarketCap,
			Volume24h:         usd.Volume24h,
			CirculatingSupply: entry.CirculatingSupply,
			TotalSupply:       entry.TotalSupply,
			LastUpdated:       lastUpdated,
		}
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, quotes, data.QuoteTTL); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache quotes")
		}
	}
	return quotes, nil
}

// Quote fetches a single market quote by id.
func (c *Client) Quote(ctx context.Context, id int64) (*models.TokenQuote, error) {
	quotes, err := c.Quotes(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	quote, ok := quotes[id]
	if !ok {
		return nil, fmt.Errorf("no quote returned for id %d", id)
	}
	return quote, nil
}
