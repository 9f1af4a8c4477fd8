package tools

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/alanmarkz/promptifi/internal/debridge"
	"github.com/alanmarkz/promptifi/internal/models"
	"github.com/alanmarkz/promptifi/internal/resolve"
)

// SwapTool turns a validated same-chain swap intent into a transaction
// payload from the DLN chain-transaction endpoint.
type SwapTool struct {
	resolver *resolve.Resolver
	fetcher  QuoteFetcher
	baseURL  string
	logger   zerolog.Logger
}

// NewSwapTool creates the swap tool.
func NewSwapTool(resolver *resolve.Resolver, fetcher QuoteFetcher, baseURL string, logger zerolog.Logger) *SwapTool {
	if baseURL == "" {
		baseURL = debridge.DefaultBaseURL
	}
	return &SwapTool{
		resolver: resolver,
		fetcher:  fetcher,
		baseURL:  baseURL,
		logger:   logger.With().Str("tool", models.ToolNameSwap).Logger(),
	}
}

func (t *SwapTool) Name() string {
	return models.ToolNameSwap
}

func (t *SwapTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        models.ToolNameSwap,
			Description: "Swap tokens in a single chain",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"FromToken": map[string]any{
						"type":        "string",
						"description": "The token being sent in the swap transaction. User can type eg: Sonic token but you have to return Sonic",
					},
					"ToToken": map[string]any{
						"type":        "string",
						"description": "The token to receive after swapping. User can type eg: Sonic token but you have to return Sonic",
					},
					"FromChainName": map[string]any{
						"type":        "string",
						"description": "The blockchain network the tokens are sent from. User can type eg: Sonic Chain but you have to return Sonic",
					},
					"amount": map[string]any{
						"type":        "string",
						"description": "The number of tokens to swap",
					},
					"dstChainTokenOutRecipient": map[string]any{
						"type":        "string",
						"description": "The wallet address receiving the swap tokens",
					},
				},
				"required": []string{"FromToken", "ToToken", "FromChainName", "amount"},
			},
		},
	}
}

// Run resolves the chain and both tokens on it, scales the amount, builds
// the swap URL, and fetches the transaction payload.
func (t *SwapTool) Run(ctx context.Context, intent *models.TransactionIntent, emit func(models.ProgressEvent)) (*models.ChatComponent, error) {
	emit(models.StateEvent(models.StateResolving, "Resolving chain and tokens..."))

	chainID, ok := t.resolver.ResolveChain(intent.FromChain)
	if !ok {
		return nil, NewToolError(t.Name(), "Invalid chain name", CodeResolution)
	}

	// Both lookups read the same chain's token list; the first fetch warms
	// the cache for the second, so these stay sequential.
	tokenIn, found, err := t.resolver.ResolveToken(ctx, chainID, intent.FromToken)
	if err != nil {
		t.logger.Error().Err(err).Msg("token list fetch failed")
		return nil, NewToolError(t.Name(), "The token directory is currently unavailable. Please try again later.", CodeUnavailable)
	}
	if !found {
		return nil, NewToolError(t.Name(), "Invalid source token name", CodeResolution)
	}
	tokenOut, found, err := t.resolver.ResolveToken(ctx, chainID, intent.ToToken)
	if err != nil {
		t.logger.Error().Err(err).Msg("token list fetch failed")
		return nil, NewToolError(t.Name(), "The token directory is currently unavailable. Please try again later.", CodeUnavailable)
	}
	if !found {
		return nil, NewToolError(t.Name(), "Invalid destination token name", CodeResolution)
	}

	scaled, err := debridge.ScaleAmount(intent.Amount, tokenIn.TokenDecimals)
	if err != nil {
		return nil, NewToolError(t.Name(), "The amount must be a positive number.", CodeResolution)
	}

	url := debridge.SwapURL(t.baseURL, debridge.SwapOrder{
		ChainID:       chainID,
		TokenIn:       tokenIn.TokenAddress,
		TokenInAmount: scaled,
		TokenOut:      tokenOut.TokenAddress,
		Recipient:     intent.Recipient,
	})

	emit(models.StateEvent(models.StateQuoteFetching, "Creating swap transaction..."))

	payload, err := t.fetcher.FetchQuote(ctx, url)
	if err != nil {
		return nil, remoteToToolError(t.Name(), err)
	}

	t.logger.Info().
		Int64("chain", chainID).
		Str("amount", scaled).
		Msg("swap transaction created")

	return &models.ChatComponent{Kind: models.ComponentSwap, Transaction: payload}, nil
}
