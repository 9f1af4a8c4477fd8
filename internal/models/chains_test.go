package models

import "testing"

func TestChains_DirectoryLoaded(t *testing.T) {
	chains := Chains()
	if len(chains) == 0 {
		t.Fatal("bundled chain directory is empty")
	}
	seen := map[int64]bool{}
	for _, c := range chains {
		if c.ChainID <= 0 {
			t.Errorf("chain %q has invalid id %d", c.ChainName, c.ChainID)
		}
		if c.ChainName == "" {
			t.Errorf("chain %d has empty name", c.ChainID)
		}
		if seen[c.ChainID] {
			t.Errorf("duplicate chain id %d", c.ChainID)
		}
		seen[c.ChainID] = true
	}
}

func TestChainName(t *testing.T) {
	cases := []struct {
		id   int64
		want string
	}{
		{1, "Ethereum"},
		{146, "Sonic"},
		{42161, "Arbitrum"},
		{7565164, "Solana"},
	}
	for _, tc := range cases {
		name, ok := ChainName(tc.id)
		if !ok {
			t.Errorf("ChainName(%d) not found", tc.id)
			continue
		}
		if name != tc.want {
			t.Errorf("ChainName(%d) = %q, want %q", tc.id, name, tc.want)
		}
	}
	if _, ok := ChainName(999999); ok {
		t.Error("unknown chain id must not resolve")
	}
}
