package models

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// chains.json is the bundled deBridge chain directory, immutable at runtime.
//
//go:embed chains.json
var chainsJSON []byte

type chainDirectory struct {
	Chains []ChainDescriptor `json:"chains"`
}

var chainDir chainDirectory

func init() {
	if err := json.Unmarshal(chainsJSON, &chainDir); err != nil {
		panic(fmt.Sprintf("bundled chain directory is invalid: %v", err))
	}
}

// Chains returns the bundled chain directory. Callers must not mutate the
// returned slice.
func Chains() []ChainDescriptor {
	return chainDir.Chains
}

// ChainName returns the directory name for a chain id, if known.
func ChainName(chainID int64) (string, bool) {
	for _, c := range chainDir.Chains {
		if c.ChainID == chainID {
			return c.ChainName, true
		}
	}
	return "", false
}
