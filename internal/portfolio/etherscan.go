package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultEtherscanBaseURL is the Etherscan v2 multichain API root. The target
// chain is selected per request via the chainid query parameter.
const DefaultEtherscanBaseURL = "https://api.etherscan.io/v2/api"

// EtherscanClient reads account balances through the Etherscan v2 API.
type EtherscanClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewEtherscanClient creates an Etherscan v2 client.
func NewEtherscanClient(baseURL, apiKey string, logger zerolog.Logger) *EtherscanClient {
	if baseURL == "" {
		baseURL = DefaultEtherscanBaseURL
	}
	return &EtherscanClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "etherscan").Logger(),
	}
}

type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (c *EtherscanClient) query(ctx context.Context, chainID int64, action string, extra url.Values) (*big.Int, error) {
	params := url.Values{}
	params.Set("chainid", fmt.Sprintf("%d", chainID))
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("tag", "latest")
	params.Set("apikey", c.apiKey)
	for key, values := range extra {
		for _, value := range values {
			params.Add(key, value)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etherscan call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan call failed with status %d", resp.StatusCode)
	}

	var parsed etherscanResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	// Status "0" carries the error in Message ("NOTOK") and Result.
	if parsed.Status != "1" {
		return nil, fmt.Errorf("etherscan error: %s", parsed.Result)
	}

	amount, ok := new(big.Int).SetString(parsed.Result, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable balance %q", parsed.Result)
	}
	return amount, nil
}

// NativeBalance returns the wallet's native-coin balance in base units on the
// given chain.
func (c *EtherscanClient) NativeBalance(ctx context.Context, chainID int64, wallet string) (*big.Int, error) {
	return c.query(ctx, chainID, "balance", url.Values{"address": {wallet}})
}

// TokenBalance returns the wallet's balance of one ERC-20 contract in base
// units on the given chain.
func (c *EtherscanClient) TokenBalance(ctx context.Context, chainID int64, wallet, contract string) (*big.Int, error) {
	return c.query(ctx, chainID, "tokenbalance", url.Values{
		"address":         {wallet},
		"contractaddress": {contract},
	})
}
