package market

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/alanmarkz/promptifi/internal/resolve"
)

// listings.json is the bundled CoinMarketCap listing directory (name/symbol to
// market id), read-only at runtime.
//
//go:embed listings.json
var listingsJSON []byte

// Listing is one entry of the bundled market-listing directory.
type Listing struct {
	ID     int64  `json:"id"`
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Slug   string `json:"slug"`
}

type listingDirectory struct {
	Data []Listing `json:"data"`
}

var listingDir listingDirectory

func init() {
	if err := json.Unmarshal(listingsJSON, &listingDir); err != nil {
		panic(fmt.Sprintf("bundled listing directory is invalid: %v", err))
	}
}

// Listings returns the bundled directory. Callers must not mutate it.
func Listings() []Listing {
	return listingDir.Data
}

// ResolveListing fuzzy-matches a free-text token name against the listing
// directory, using the same policy as chain and token resolution.
func ResolveListing(name string) (*Listing, bool) {
	names := make([]string, 0, len(listingDir.Data)*2)
	indexes := make([]int, 0, len(listingDir.Data)*2)
	for i, l := range listingDir.Data {
		names = append(names, l.Name, l.Symbol)
		indexes = append(indexes, i, i)
	}
	idx, ok := resolve.BestMatch(name, names)
	if !ok {
		return nil, false
	}
	return &listingDir.Data[indexes[idx]], true
}
