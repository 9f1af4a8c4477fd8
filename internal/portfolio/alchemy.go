package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAlchemyBaseURL is the Ethereum mainnet JSON-RPC endpoint. The API
// key is appended as the final path segment.
const DefaultAlchemyBaseURL = "https://eth-mainnet.g.alchemy.com/v2"

// AlchemyClient reads ERC-20 and native balances over Alchemy's enhanced
// JSON-RPC API.
type AlchemyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewAlchemyClient creates an Alchemy client for Ethereum mainnet.
func NewAlchemyClient(baseURL, apiKey string, logger zerolog.Logger) *AlchemyClient {
	if baseURL == "" {
		baseURL = DefaultAlchemyBaseURL
	}
	return &AlchemyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "alchemy").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// TokenBalance is one nonzero ERC-20 balance for a wallet.
type TokenBalance struct {
	ContractAddress string `json:"contractAddress"`
	TokenBalance    string `json:"tokenBalance"`
}

// TokenMetadata describes an ERC-20 contract.
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Logo     string `json:"logo"`
}

func (c *AlchemyClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call failed with status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// TokenBalances returns the wallet's nonzero ERC-20 balances.
func (c *AlchemyClient) TokenBalances(ctx context.Context, wallet string) ([]TokenBalance, error) {
	var result struct {
		Address       string         `json:"address"`
		TokenBalances []TokenBalance `json:"tokenBalances"`
	}
	if err := c.call(ctx, "alchemy_getTokenBalances", []interface{}{wallet, "erc20"}, &result); err != nil {
		return nil, err
	}

	nonzero := make([]TokenBalance, 0, len(result.TokenBalances))
	for _, balance := range result.TokenBalances {
		amount, ok := parseHexBig(balance.TokenBalance)
		if !ok || amount.Sign() == 0 {
			continue
		}
		nonzero = append(nonzero, balance)
	}
	return nonzero, nil
}

// TokenMetadata returns name, symbol, and decimals for an ERC-20 contract.
func (c *AlchemyClient) TokenMetadata(ctx context.Context, contract string) (*TokenMetadata, error) {
	var meta TokenMetadata
	if err := c.call(ctx, "alchemy_getTokenMetadata", []interface{}{contract}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// NativeBalance returns the wallet's ETH balance in wei.
func (c *AlchemyClient) NativeBalance(ctx context.Context, wallet string) (*big.Int, error) {
	var hexBalance string
	if err := c.call(ctx, "eth_getBalance", []interface{}{wallet, "latest"}, &hexBalance); err != nil {
		return nil, err
	}
	amount, ok := parseHexBig(hexBalance)
	if !ok {
		return nil, fmt.Errorf("unparseable balance %q", hexBalance)
	}
	return amount, nil
}

func parseHexBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
}
