package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanmarkz/promptifi/internal/market"
	"github.com/alanmarkz/promptifi/internal/models"
)

// sonicTokens are the ERC-20 contracts tracked on Sonic, where no indexed
// balance API is available and each contract is queried individually.
var sonicTokens = []struct {
	Symbol   string
	Name     string
	Contract string
	Decimals int
}{
	{Symbol: "wS", Name: "Wrapped Sonic", Contract: "0x039e2fB66102314Ce7b64Ce5Ce3E5183bc94aD38", Decimals: 18},
	{Symbol: "USDC.e", Name: "Bridged USDC", Contract: "0x29219dd400f2Bf60E5a23d13Be72B486D4038894", Decimals: 6},
	{Symbol: "WETH", Name: "Wrapped Ether", Contract: "0x50c42dEAcD8Fc9773493ED674b675bE577f2634b", Decimals: 18},
}

// Asset is one valued holding in a wallet portfolio.
type Asset struct {
	ChainID         int64   `json:"chain_id"`
	ChainName       string  `json:"chain_name"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	ContractAddress string  `json:"contract_address,omitempty"`
	Balance         float64 `json:"balance"`
	BalanceRaw      string  `json:"balance_raw"`
	Decimals        int     `json:"decimals"`
	PriceUSD        float64 `json:"price_usd"`
	ValueUSD        float64 `json:"value_usd"`
	Formatted       string  `json:"formatted"`
}

// Portfolio is a wallet's holdings across the tracked chains.
type Portfolio struct {
	Wallet         string    `json:"wallet"`
	Assets         []Asset   `json:"assets"`
	TotalValueUSD  float64   `json:"total_value_usd"`
	FormattedTotal string    `json:"formatted_total"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// QuoteSource resolves market quotes for valuation.
type QuoteSource interface {
	Quote(ctx context.Context, id int64) (*models.TokenQuote, error)
}

// Service aggregates balances from Alchemy (Ethereum) and Etherscan v2
// (Sonic) and values them against market quotes.
type Service struct {
	alchemy   *AlchemyClient
	etherscan *EtherscanClient
	quotes    QuoteSource
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewService wires the balance and quote clients into a portfolio service.
func NewService(alchemy *AlchemyClient, etherscan *EtherscanClient, quotes QuoteSource, logger zerolog.Logger) *Service {
	return &Service{
		alchemy:   alchemy,
		etherscan: etherscan,
		quotes:    quotes,
		logger:    logger.With().Str("component", "portfolio").Logger(),
		tracer:    otel.Tracer("portfolio"),
	}
}

// Portfolio fetches and values a wallet's holdings. Per-asset failures are
// logged and the asset skipped; only a total outage fails the whole call.
func (s *Service) Portfolio(ctx context.Context, wallet string) (*Portfolio, error) {
	ctx, span := s.tracer.Start(ctx, "portfolio.Portfolio",
		trace.WithAttributes(attribute.String("wallet", wallet)))
	defer span.End()

	portfolio := &Portfolio{
		Wallet:    wallet,
		Assets:    []Asset{},
		FetchedAt: time.Now().UTC(),
	}

	s.collectEthereum(ctx, wallet, portfolio)
	s.collectSonic(ctx, wallet, portfolio)

	if len(portfolio.Assets) == 0 {
		return portfolio, nil
	}
	for i := range portfolio.Assets {
		portfolio.TotalValueUSD += portfolio.Assets[i].ValueUSD
	}
	portfolio.FormattedTotal = "$" + humanize.CommafWithDigits(portfolio.TotalValueUSD, 2)
	return portfolio, nil
}

func (s *Service) collectEthereum(ctx context.Context, wallet string, portfolio *Portfolio) {
	const chainID = 1

	native, err := s.alchemy.NativeBalance(ctx, wallet)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch ETH balance")
	} else if native.Sign() > 0 {
		s.appendAsset(ctx, portfolio, Asset{
			ChainID:    chainID,
			ChainName:  chainName(chainID),
			Symbol:     "ETH",
			Name:       "Ethereum",
			BalanceRaw: native.String(),
			Decimals:   18,
		})
	}

	balances, err := s.alchemy.TokenBalances(ctx, wallet)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch ERC-20 balances")
		return
	}
	for _, balance := range balances {
		meta, err := s.alchemy.TokenMetadata(ctx, balance.ContractAddress)
		if err != nil {
			s.logger.Warn().Err(err).Str("contract", balance.ContractAddress).Msg("failed to fetch token metadata")
			continue
		}
		amount, ok := parseHexBig(balance.TokenBalance)
		if !ok {
			continue
		}
		s.appendAsset(ctx, portfolio, Asset{
			ChainID:         chainID,
			ChainName:       chainName(chainID),
			Symbol:          meta.Symbol,
			Name:            meta.Name,
			ContractAddress: balance.ContractAddress,
			BalanceRaw:      amount.String(),
			Decimals:        meta.Decimals,
		})
	}
}

func (s *Service) collectSonic(ctx context.Context, wallet string, portfolio *Portfolio) {
	const chainID = 146

	native, err := s.etherscan.NativeBalance(ctx, chainID, wallet)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch S balance")
	} else if native.Sign() > 0 {
		s.appendAsset(ctx, portfolio, Asset{
			ChainID:    chainID,
			ChainName:  chainName(chainID),
			Symbol:     "S",
			Name:       "Sonic",
			BalanceRaw: native.String(),
			Decimals:   18,
		})
	}

	for _, token := range sonicTokens {
		amount, err := s.etherscan.TokenBalance(ctx, chainID, wallet, token.Contract)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", token.Symbol).Msg("failed to fetch Sonic token balance")
			continue
		}
		if amount.Sign() == 0 {
			continue
		}
		s.appendAsset(ctx, portfolio, Asset{
			ChainID:         chainID,
			ChainName:       chainName(chainID),
			Symbol:          token.Symbol,
			Name:            token.Name,
			ContractAddress: token.Contract,
			BalanceRaw:      amount.String(),
			Decimals:        token.Decimals,
		})
	}
}

// appendAsset values the asset and formats it for display. Quote failures
// leave the asset unpriced rather than dropping it.
func (s *Service) appendAsset(ctx context.Context, portfolio *Portfolio, asset Asset) {
	asset.Balance = baseUnitsToFloat(asset.BalanceRaw, asset.Decimals)

	if quote, err := s.valueAsset(ctx, asset.Symbol); err != nil {
		s.logger.Debug().Err(err).Str("symbol", asset.Symbol).Msg("asset left unpriced")
	} else {
		asset.PriceUSD = quote.Price
		asset.ValueUSD = asset.Balance * quote.Price
	}
	asset.Formatted = fmt.Sprintf("%s %s ($%s)",
		humanize.CommafWithDigits(asset.Balance, 4), asset.Symbol,
		humanize.CommafWithDigits(asset.ValueUSD, 2))
	portfolio.Assets = append(portfolio.Assets, asset)
}

func (s *Service) valueAsset(ctx context.Context, symbol string) (*models.TokenQuote, error) {
	listing, ok := market.ResolveListing(symbol)
	if !ok {
		return nil, fmt.Errorf("no listing for %q", symbol)
	}
	return s.quotes.Quote(ctx, listing.ID)
}

func chainName(chainID int64) string {
	name, _ := models.ChainName(chainID)
	return name
}

func baseUnitsToFloat(raw string, decimals int) float64 {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return value
}
