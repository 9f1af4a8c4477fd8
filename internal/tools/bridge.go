package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/alanmarkz/promptifi/internal/debridge"
	"github.com/alanmarkz/promptifi/internal/models"
	"github.com/alanmarkz/promptifi/internal/resolve"
)

// QuoteFetcher is the slice of the deBridge client the transaction tools use.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, url string) (json.RawMessage, error)
}

// BridgeTool turns a validated bridge intent into a signed-transaction
// payload from the DLN order-creation endpoint.
type BridgeTool struct {
	resolver *resolve.Resolver
	fetcher  QuoteFetcher
	baseURL  string
	logger   zerolog.Logger
}

// NewBridgeTool creates the bridge tool.
func NewBridgeTool(resolver *resolve.Resolver, fetcher QuoteFetcher, baseURL string, logger zerolog.Logger) *BridgeTool {
	if baseURL == "" {
		baseURL = debridge.DefaultBaseURL
	}
	return &BridgeTool{
		resolver: resolver,
		fetcher:  fetcher,
		baseURL:  baseURL,
		logger:   logger.With().Str("tool", models.ToolNameBridge).Logger(),
	}
}

func (t *BridgeTool) Name() string {
	return models.ToolNameBridge
}

func (t *BridgeTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        models.ToolNameBridge,
			Description: "Bridge tokens between chains",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"FromToken": map[string]any{
						"type":        "string",
						"description": "The token being sent in the bridge transaction. User can type eg: Sonic token but you have to return Sonic",
					},
					"ToToken": map[string]any{
						"type":        "string",
						"description": "The token to receive after bridging. User can type eg: Sonic token but you have to return Sonic",
					},
					"FromChainName": map[string]any{
						"type":        "string",
						"description": "The blockchain network the tokens are sent from. User can type eg: Sonic Chain but you have to return Sonic",
					},
					"ToChainName": map[string]any{
						"type":        "string",
						"description": "The blockchain network the tokens are sent to. User can type eg: Sonic Chain but you have to return Sonic",
					},
					"amount": map[string]any{
						"type":        "string",
						"description": "The number of tokens to bridge",
					},
					"dstChainTokenOutRecipient": map[string]any{
						"type":        "string",
						"description": "The wallet address receiving the bridged tokens",
					},
				},
				"required": []string{"FromToken", "ToToken", "FromChainName", "ToChainName", "amount"},
			},
		},
	}
}

// Run resolves both chains and both tokens, scales the amount, builds the
// order URL, and fetches the transaction payload. Any unresolved name
// short-circuits before the quote request is issued.
func (t *BridgeTool) Run(ctx context.Context, intent *models.TransactionIntent, emit func(models.ProgressEvent)) (*models.ChatComponent, error) {
	emit(models.StateEvent(models.StateResolving, "Resolving chains and tokens..."))

	srcChainID, ok := t.resolver.ResolveChain(intent.FromChain)
	if !ok {
		return nil, NewToolError(t.Name(), "Invalid source chain name", CodeResolution)
	}
	dstChainID, ok := t.resolver.ResolveChain(intent.ToChain)
	if !ok {
		return nil, NewToolError(t.Name(), "Invalid destination chain name", CodeResolution)
	}

	// The two token lookups hit independent per-chain token lists, so they
	// run concurrently.
	type tokenResult struct {
		token *models.ResolvedToken
		found bool
		err   error
	}
	srcCh := make(chan tokenResult, 1)
	dstCh := make(chan tokenResult, 1)
	go func() {
		token, found, err := t.resolver.ResolveToken(ctx, srcChainID, intent.FromToken)
		srcCh <- tokenResult{token, found, err}
	}()
	go func() {
		token, found, err := t.resolver.ResolveToken(ctx, dstChainID, intent.ToToken)
		dstCh <- tokenResult{token, found, err}
	}()
	src, dst := <-srcCh, <-dstCh

	if src.err != nil || dst.err != nil {
		err := src.err
		if err == nil {
			err = dst.err
		}
		t.logger.Error().Err(err).Msg("token list fetch failed")
		return nil, NewToolError(t.Name(), "The token directory is currently unavailable. Please try again later.", CodeUnavailable)
	}
	if !src.found {
		return nil, NewToolError(t.Name(), "Invalid source token name", CodeResolution)
	}
	if !dst.found {
		return nil, NewToolError(t.Name(), "Invalid destination token name", CodeResolution)
	}

	scaled, err := debridge.ScaleAmount(intent.Amount, src.token.TokenDecimals)
	if err != nil {
		return nil, NewToolError(t.Name(), "The amount must be a positive number.", CodeResolution)
	}

	url := debridge.BridgeOrderURL(t.baseURL, debridge.BridgeOrder{
		SrcChainID:            srcChainID,
		SrcChainTokenIn:       src.token.TokenAddress,
		SrcChainTokenInAmount: scaled,
		DstChainID:            dstChainID,
		DstChainTokenOut:      dst.token.TokenAddress,
		Recipient:             intent.Recipient,
		SrcOrderAuthority:     intent.Recipient,
		DstOrderAuthority:     intent.Recipient,
	})

	emit(models.StateEvent(models.StateQuoteFetching, "Creating bridge transaction..."))

	payload, err := t.fetcher.FetchQuote(ctx, url)
	if err != nil {
		return nil, remoteToToolError(t.Name(), err)
	}

	t.logger.Info().
		Int64("src_chain", srcChainID).
		Int64("dst_chain", dstChainID).
		Str("amount", scaled).
		Msg("bridge transaction created")

	return &models.ChatComponent{Kind: models.ComponentBridge, Transaction: payload}, nil
}

// remoteToToolError maps fetcher failures onto the user-visible taxonomy:
// remote rejections verbatim, everything else as service-unavailable.
func remoteToToolError(tool string, err error) *ToolError {
	var remote *debridge.RemoteError
	if errors.As(err, &remote) {
		return NewToolError(tool, remote.Message, CodeRemote)
	}
	if errors.Is(err, debridge.ErrServiceUnavailable) {
		return NewToolError(tool, "The quote service is currently unavailable. Please try again later.", CodeUnavailable)
	}
	return NewToolError(tool, fmt.Sprintf("Transaction could not be created: %v", err), CodeUnavailable)
}
