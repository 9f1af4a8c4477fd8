package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/data"
)

const quoteFixture = `{
	"status": {"timestamp": "2025-01-01T00:00:00.000Z", "error_code": 0, "error_message": ""},
	"data": {
		"32684": {
			"id": 32684,
			"name": "Sonic",
			"symbol": "S",
			"slug": "sonic",
			"circulating_supply": 2880000000,
			"total_supply": 3175000000,
			"quote": {
				"USD": {
					"price": 0.8421,
					"volume_24h": 150000000,
					"percent_change_1h": 0.5,
					"percent_change_24h": -2.3,
					"percent_change_7d": 11.2,
					"market_cap": 2425000000,
					"last_updated": "2025-01-01T00:00:00Z"
				}
			}
		}
	}
}`

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CMC_PRO_API_KEY") != "test-key" {
			t.Errorf("missing API key header")
		}
		if r.URL.Path != "/v2/cryptocurrency/quotes/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "32684" {
			t.Errorf("id param = %q", r.URL.Query().Get("id"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(quoteFixture))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil, zerolog.Nop())
	quote, err := client.Quote(context.Background(), 32684)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Name != "Sonic" || quote.Symbol != "S" {
		t.Errorf("quote identity = %s/%s", quote.Name, quote.Symbol)
	}
	if quote.Price != 0.8421 {
		t.Errorf("price = %v", quote.Price)
	}
	if quote.PercentChange24h != -2.3 {
		t.Errorf("24h change = %v", quote.PercentChange24h)
	}
	if quote.MarketCap != 2425000000 {
		t.Errorf("market cap = %v", quote.MarketCap)
	}
}

func TestQuotes_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"error_code":1001,"error_message":"This API Key is invalid."},"data":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key", nil, zerolog.Nop())
	if _, err := client.Quotes(context.Background(), []int64{1}); err == nil {
		t.Fatal("expected API error")
	}
}

func TestQuotes_NoKeyConfigured(t *testing.T) {
	client := NewClient("http://invalid", "", nil, zerolog.Nop())
	if _, err := client.Quotes(context.Background(), []int64{1}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestQuotes_CachesResult(t *testing.T) {
	connector, err := data.NewMemoryConnector(1 << 20)
	if err != nil {
		t.Fatalf("failed to create memory connector: %v", err)
	}
	defer connector.Close()
	cache := data.NewCache(connector, "test", time.Minute)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(quoteFixture))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", cache, zerolog.Nop())
	ctx := context.Background()
	if _, err := client.Quote(ctx, 32684); err != nil {
		t.Fatalf("first Quote failed: %v", err)
	}
	if _, err := client.Quote(ctx, 32684); err != nil {
		t.Fatalf("cached Quote failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 remote call, got %d", got)
	}
}
