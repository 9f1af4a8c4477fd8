package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/models"
)

const (
	testWallet   = "0x1111111111111111111111111111111111111111"
	usdcContract = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// newAlchemyServer serves canned JSON-RPC responses keyed by method name.
func newAlchemyServer(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode rpc request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %q", req.Method)
			http.Error(w, "unexpected method", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
	}))
}

// newEtherscanServer serves balances keyed by action, or by contract address
// for tokenbalance queries.
func newEtherscanServer(t *testing.T, nativeBalance string, tokenBalances map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("chainid") != "146" {
			t.Errorf("chainid = %q, want 146", query.Get("chainid"))
		}
		var result string
		switch query.Get("action") {
		case "balance":
			result = nativeBalance
		case "tokenbalance":
			result = tokenBalances[query.Get("contractaddress")]
			if result == "" {
				result = "0"
			}
		default:
			t.Errorf("unexpected action %q", query.Get("action"))
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "1", "message": "OK", "result": result})
	}))
}

type fakeQuoteSource struct {
	prices map[int64]float64
	err    error
}

func (f *fakeQuoteSource) Quote(_ context.Context, id int64) (*models.TokenQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	price, ok := f.prices[id]
	if !ok {
		return nil, fmt.Errorf("no quote for id %d", id)
	}
	return &models.TokenQuote{ID: id, Price: price}, nil
}

func TestAlchemyClient_TokenBalancesFiltersZero(t *testing.T) {
	server := newAlchemyServer(t, map[string]interface{}{
		"alchemy_getTokenBalances": map[string]interface{}{
			"address": testWallet,
			"tokenBalances": []map[string]string{
				{"contractAddress": usdcContract, "tokenBalance": "0x3b9aca00"},
				{"contractAddress": "0x2222222222222222222222222222222222222222", "tokenBalance": "0x0"},
			},
		},
	})
	defer server.Close()

	client := NewAlchemyClient(server.URL, "test-key", testLogger())
	balances, err := client.TokenBalances(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("TokenBalances() error = %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("len(balances) = %d, want 1", len(balances))
	}
	if balances[0].ContractAddress != usdcContract {
		t.Errorf("contract = %q, want %q", balances[0].ContractAddress, usdcContract)
	}
}

func TestAlchemyClient_NativeBalance(t *testing.T) {
	server := newAlchemyServer(t, map[string]interface{}{
		"eth_getBalance": "0x1bc16d674ec80000",
	})
	defer server.Close()

	client := NewAlchemyClient(server.URL, "test-key", testLogger())
	balance, err := client.NativeBalance(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("NativeBalance() error = %v", err)
	}
	if balance.String() != "2000000000000000000" {
		t.Errorf("balance = %s, want 2000000000000000000", balance.String())
	}
}

func TestAlchemyClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32000, "message": "invalid api key"},
		})
	}))
	defer server.Close()

	client := NewAlchemyClient(server.URL, "bad-key", testLogger())
	if _, err := client.NativeBalance(context.Background(), testWallet); err == nil {
		t.Fatal("NativeBalance() error = nil, want rpc error")
	}
}

func TestEtherscanClient_NativeBalance(t *testing.T) {
	server := newEtherscanServer(t, "5000000000000000000", nil)
	defer server.Close()

	client := NewEtherscanClient(server.URL, "test-key", testLogger())
	balance, err := client.NativeBalance(context.Background(), 146, testWallet)
	if err != nil {
		t.Fatalf("NativeBalance() error = %v", err)
	}
	if balance.String() != "5000000000000000000" {
		t.Errorf("balance = %s, want 5000000000000000000", balance.String())
	}
}

func TestEtherscanClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status": "0", "message": "NOTOK", "result": "Max rate limit reached",
		})
	}))
	defer server.Close()

	client := NewEtherscanClient(server.URL, "test-key", testLogger())
	_, err := client.NativeBalance(context.Background(), 146, testWallet)
	if err == nil {
		t.Fatal("NativeBalance() error = nil, want etherscan error")
	}
	if got := err.Error(); got != "etherscan error: Max rate limit reached" {
		t.Errorf("error = %q", got)
	}
}

func TestService_Portfolio(t *testing.T) {
	alchemyServer := newAlchemyServer(t, map[string]interface{}{
		"eth_getBalance": "0x1bc16d674ec80000",
		"alchemy_getTokenBalances": map[string]interface{}{
			"address": testWallet,
			"tokenBalances": []map[string]string{
				{"contractAddress": usdcContract, "tokenBalance": "0x3b9aca00"},
			},
		},
		"alchemy_getTokenMetadata": map[string]interface{}{
			"name": "USD Coin", "symbol": "USDC", "decimals": 6,
		},
	})
	defer alchemyServer.Close()

	etherscanServer := newEtherscanServer(t, "5000000000000000000", map[string]string{
		"0x29219dd400f2Bf60E5a23d13Be72B486D4038894": "250000000",
	})
	defer etherscanServer.Close()

	quotes := &fakeQuoteSource{prices: map[int64]float64{
		1027:  2000, // ETH
		3408:  1,    // USDC
		32684: 2,    // S
	}}
	service := NewService(
		NewAlchemyClient(alchemyServer.URL, "test-key", testLogger()),
		NewEtherscanClient(etherscanServer.URL, "test-key", testLogger()),
		quotes, testLogger())

	portfolio, err := service.Portfolio(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if portfolio.Wallet != testWallet {
		t.Errorf("wallet = %q, want %q", portfolio.Wallet, testWallet)
	}
	if len(portfolio.Assets) != 4 {
		t.Fatalf("len(assets) = %d, want 4: %+v", len(portfolio.Assets), portfolio.Assets)
	}

	bySymbol := make(map[string]Asset)
	for _, asset := range portfolio.Assets {
		bySymbol[asset.Symbol] = asset
	}

	eth := bySymbol["ETH"]
	if eth.Balance != 2 || eth.ValueUSD != 4000 || eth.ChainID != 1 {
		t.Errorf("ETH asset = %+v", eth)
	}
	if eth.ChainName != "Ethereum" {
		t.Errorf("ETH chain name = %q, want Ethereum", eth.ChainName)
	}
	usdc := bySymbol["USDC"]
	if usdc.Balance != 1000 || usdc.ValueUSD != 1000 || usdc.ContractAddress != usdcContract {
		t.Errorf("USDC asset = %+v", usdc)
	}
	native := bySymbol["S"]
	if native.Balance != 5 || native.ValueUSD != 10 || native.ChainID != 146 {
		t.Errorf("S asset = %+v", native)
	}
	bridged := bySymbol["USDC.e"]
	if bridged.Balance != 250 || bridged.ValueUSD != 250 || bridged.Decimals != 6 {
		t.Errorf("USDC.e asset = %+v", bridged)
	}

	if portfolio.TotalValueUSD != 5260 {
		t.Errorf("total = %v, want 5260", portfolio.TotalValueUSD)
	}
	if portfolio.FormattedTotal != "$5,260" {
		t.Errorf("formatted total = %q, want $5,260", portfolio.FormattedTotal)
	}
}

func TestService_QuoteFailureLeavesAssetUnpriced(t *testing.T) {
	alchemyServer := newAlchemyServer(t, map[string]interface{}{
		"eth_getBalance":           "0x1bc16d674ec80000",
		"alchemy_getTokenBalances": map[string]interface{}{"tokenBalances": []map[string]string{}},
	})
	defer alchemyServer.Close()
	etherscanServer := newEtherscanServer(t, "0", nil)
	defer etherscanServer.Close()

	quotes := &fakeQuoteSource{err: fmt.Errorf("quote service down")}
	service := NewService(
		NewAlchemyClient(alchemyServer.URL, "test-key", testLogger()),
		NewEtherscanClient(etherscanServer.URL, "test-key", testLogger()),
		quotes, testLogger())

	portfolio, err := service.Portfolio(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if len(portfolio.Assets) != 1 {
		t.Fatalf("len(assets) = %d, want 1", len(portfolio.Assets))
	}
	asset := portfolio.Assets[0]
	if asset.Balance != 2 {
		t.Errorf("balance = %v, want 2", asset.Balance)
	}
	if asset.PriceUSD != 0 || asset.ValueUSD != 0 {
		t.Errorf("asset should be unpriced, got %+v", asset)
	}
	if portfolio.TotalValueUSD != 0 {
		t.Errorf("total = %v, want 0", portfolio.TotalValueUSD)
	}
}

func TestService_BalanceOutageSkipsChain(t *testing.T) {
	alchemyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer alchemyServer.Close()
	etherscanServer := newEtherscanServer(t, "1000000000000000000", nil)
	defer etherscanServer.Close()

	quotes := &fakeQuoteSource{prices: map[int64]float64{32684: 2}}
	service := NewService(
		NewAlchemyClient(alchemyServer.URL, "test-key", testLogger()),
		NewEtherscanClient(etherscanServer.URL, "test-key", testLogger()),
		quotes, testLogger())

	portfolio, err := service.Portfolio(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if len(portfolio.Assets) != 1 || portfolio.Assets[0].Symbol != "S" {
		t.Fatalf("assets = %+v, want only the Sonic native balance", portfolio.Assets)
	}
}
