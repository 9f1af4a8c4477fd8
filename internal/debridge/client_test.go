package debridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/data"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		BackoffFactor:  2.0,
		RequestTimeout: time.Second,
	}
}

func newTestClient(t *testing.T, handler http.Handler, cache *data.Cache) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, cache, zerolog.Nop())
	client.SetRetryConfig(testRetryConfig())
	return client, server
}

func TestFetchQuote_Success(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tx":{"to":"0xabc","data":"0x1234","value":"0"}}`))
	}), nil)

	payload, err := client.FetchQuote(context.Background(), server.URL+"/v1.0/dln/order/create-tx")
	if err != nil {
		t.Fatalf("FetchQuote failed: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty payload")
	}
}

func TestFetchQuote_RemoteErrorVerbatim(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":40401,"errorMessage":"The requested token pair is not supported"}`))
	}), nil)

	_, err := client.FetchQuote(context.Background(), server.URL+"/v1.0/dln/order/create-tx")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Message != "The requested token pair is not supported" {
		t.Errorf("remote message altered: %q", remote.Message)
	}
	if remote.Code != 40401 {
		t.Errorf("remote code = %d, want 40401", remote.Code)
	}
}

func TestFetchQuote_RetriesTransientFailures(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"tx":{"to":"0xabc"}}`))
	}), nil)

	_, err := client.FetchQuote(context.Background(), server.URL+"/quote")
	if err != nil {
		t.Fatalf("FetchQuote failed after retries: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestFetchQuote_ExhaustedRetries(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), nil)

	_, err := client.FetchQuote(context.Background(), server.URL+"/quote")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	// MaxRetries of 2 means 3 attempts total.
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestFetchQuote_DoesNotRetryRemoteRejection(t *testing.T) {
	var calls int32
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":1,"errorMessage":"Insufficient liquidity"}`))
	}), nil)

	_, err := client.FetchQuote(context.Background(), server.URL+"/quote")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("remote rejection retried: %d attempts", got)
	}
}

func TestTokenList_CachesResult(t *testing.T) {
	connector, err := data.NewMemoryConnector(1 << 20)
	if err != nil {
		t.Fatalf("failed to create memory connector: %v", err)
	}
	t.Cleanup(func() { connector.Close() })
	cache := data.NewCache(connector, "test", time.Minute)

	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("chainId") != "146" {
			t.Errorf("chainId = %q, want 146", r.URL.Query().Get("chainId"))
		}
		w.Write([]byte(`{"tokens":{"0x0000000000000000000000000000000000000000":{"address":"0x0000000000000000000000000000000000000000","name":"Sonic","symbol":"S","decimals":18}}}`))
	}), cache)

	ctx := context.Background()
	first, err := client.TokenList(ctx, 146)
	if err != nil {
		t.Fatalf("TokenList failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 token, got %d", len(first))
	}

	second, err := client.TokenList(ctx, 146)
	if err != nil {
		t.Fatalf("cached TokenList failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 cached token, got %d", len(second))
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 remote call, got %d", got)
	}
}

func TestTokenList_MissingTokensField(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}), nil)

	_, err := client.TokenList(context.Background(), 1)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
