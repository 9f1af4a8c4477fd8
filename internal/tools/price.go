package tools

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/alanmarkz/promptifi/internal/market"
	"github.com/alanmarkz/promptifi/internal/models"
)

// QuoteSource is the slice of the market client the price tool uses.
type QuoteSource interface {
	Quote(ctx context.Context, id int64) (*models.TokenQuote, error)
}

// PriceTool looks up market price and stats for a token named in free text.
type PriceTool struct {
	quotes QuoteSource
	logger zerolog.Logger
}

// NewPriceTool creates the price tool.
func NewPriceTool(quotes QuoteSource, logger zerolog.Logger) *PriceTool {
	return &PriceTool{
		quotes: quotes,
		logger: logger.With().Str("tool", models.ToolNamePrice).Logger(),
	}
}

func (t *PriceTool) Name() string {
	return models.ToolNamePrice
}

func (t *PriceTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        models.ToolNamePrice,
			Description: "Returns and give analysis for the token and also price and stats of the token",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tokenName": map[string]any{
						"type":        "string",
						"description": "The name of the token to get the price and stats for",
					},
				},
				"required": []string{"tokenName"},
			},
		},
	}
}

// Run matches the token name against the bundled listing directory and
// fetches its latest quote.
func (t *PriceTool) Run(ctx context.Context, intent *models.TransactionIntent, emit func(models.ProgressEvent)) (*models.ChatComponent, error) {
	emit(models.StateEvent(models.StateResolving, "Analyzing token..."))

	listing, ok := market.ResolveListing(intent.TokenName)
	if !ok {
		return nil, NewToolError(t.Name(), "Can't find the token", CodeResolution)
	}

	emit(models.StateEvent(models.StateQuoteFetching, "Fetching market data..."))

	quote, err := t.quotes.Quote(ctx, listing.ID)
	if err != nil {
		t.logger.Error().Err(err).Int64("listing_id", listing.ID).Msg("quote fetch failed")
		return nil, NewToolError(t.Name(), "The market data service is currently unavailable. Please try again later.", CodeUnavailable)
	}

	return &models.ChatComponent{Kind: models.ComponentTokenQuote, Quote: quote}, nil
}
