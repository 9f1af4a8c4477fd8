package resolve

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/models"
)

// MatchThreshold is the single acceptance bound for every resolution path:
// chains, tokens, and market listings all use the same normalized-distance
// policy. A candidate matches when its normalized edit distance is at or
// below this value (0 is exact, 1 is unrelated).
const MatchThreshold = 0.4

// TokenLister supplies per-chain token directories. Satisfied by the deBridge
// client; tests plug in fixtures.
type TokenLister interface {
	TokenList(ctx context.Context, chainID int64) (map[string]models.TokenDescriptor, error)
}

// Resolver fuzzy-matches free-text chain and token names against reference
// directories, producing canonical chain ids and on-chain token addresses.
type Resolver struct {
	tokens TokenLister
	chains []models.ChainDescriptor
	logger zerolog.Logger
}

// NewResolver builds a resolver over the bundled chain directory.
func NewResolver(tokens TokenLister, logger zerolog.Logger) *Resolver {
	return &Resolver{
		tokens: tokens,
		chains: models.Chains(),
		logger: logger.With().Str("component", "resolver").Logger(),
	}
}

// ResolveChain maps a free-text chain name to its canonical chain id. Returns
// false when no candidate clears the match threshold; callers must treat that
// as "cannot proceed".
func (r *Resolver) ResolveChain(name string) (int64, bool) {
	names := make([]string, len(r.chains))
	for i, c := range r.chains {
		names[i] = c.ChainName
	}
	idx, ok := BestMatch(name, names)
	if !ok {
		r.logger.Debug().Str("query", name).Msg("no chain match")
		return 0, false
	}
	return r.chains[idx].ChainID, true
}

// ResolveToken finds a token on a chain by name or symbol fragment. The error
// is non-nil only for token-list fetch failures; an unmatched name is
// (nil, false, nil).
func (r *Resolver) ResolveToken(ctx context.Context, chainID int64, fragment string) (*models.ResolvedToken, bool, error) {
	tokens, err := r.tokens.TokenList(ctx, chainID)
	if err != nil {
		return nil, false, err
	}

	// Map order is random; sorted addresses keep equal-score ties stable.
	sorted := make([]string, 0, len(tokens))
	for address := range tokens {
		sorted = append(sorted, address)
	}
	sort.Strings(sorted)

	addresses := make([]string, 0, len(tokens)*2)
	names := make([]string, 0, len(tokens)*2)
	for _, address := range sorted {
		token := tokens[address]
		// Symbol and name are scored independently so "USDC" finds "USD Coin".
		addresses = append(addresses, address, address)
		names = append(names, token.Name, token.Symbol)
	}

	idx, ok := BestMatch(fragment, names)
	if !ok {
		r.logger.Debug().Str("query", fragment).Int64("chain_id", chainID).Msg("no token match")
		return nil, false, nil
	}

	token := tokens[addresses[idx]]
	return &models.ResolvedToken{
		TokenAddress:  addresses[idx],
		TokenDecimals: token.Decimals,
	}, true, nil
}

// BestMatch returns the index of the candidate best matching query, or false
// when nothing clears MatchThreshold. Exact (case-folded) matches rank ahead
// of substring matches, which rank ahead of edit-distance matches.
func BestMatch(query string, candidates []string) (int, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, false
	}

	bestIdx := -1
	bestScore := MatchThreshold
	for i, candidate := range candidates {
		score, ok := matchScore(query, candidate)
		if !ok {
			continue
		}
		if bestIdx == -1 || score < bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	return bestIdx, bestIdx >= 0
}

// matchScore computes the normalized distance between query and candidate.
func matchScore(query, candidate string) (float64, bool) {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)
	if c == "" {
		return 0, false
	}
	if q == c {
		return 0, true
	}

	longer := len(q)
	if len(c) > longer {
		longer = len(c)
	}

	// Substring containment scores by the unmatched remainder, so "Sonic"
	// against "Sonic Chain" beats a same-length edit-distance candidate.
	if strings.Contains(c, q) || strings.Contains(q, c) {
		shorter := len(q)
		if len(c) < shorter {
			shorter = len(c)
		}
		score := float64(longer-shorter) / float64(longer) * 0.5
		if score <= MatchThreshold {
			return score, true
		}
		return 0, false
	}

	distance := fuzzy.RankMatchNormalizedFold(q, c)
	if distance < 0 {
		// Not a subsequence match either way round; fall back to symmetric
		// Levenshtein so transpositions like "Etherum" still resolve.
		distance = fuzzy.LevenshteinDistance(q, c)
	}
	score := float64(distance) / float64(longer)
	if score <= MatchThreshold {
		return score, true
	}
	return 0, false
}
