package debridge

import (
	"net/url"
	"testing"
)

func TestBridgeOrderURL(t *testing.T) {
	built := BridgeOrderURL(DefaultBaseURL, BridgeOrder{
		SrcChainID:            146,
		SrcChainTokenIn:       "0x0000000000000000000000000000000000000000",
		SrcChainTokenInAmount: "10000000000000000000",
		DstChainID:            1,
		DstChainTokenOut:      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Recipient:             "0x1111111111111111111111111111111111111111",
		SrcOrderAuthority:     "0x1111111111111111111111111111111111111111",
		DstOrderAuthority:     "0x1111111111111111111111111111111111111111",
	})

	parsed, err := url.Parse(built)
	if err != nil {
		t.Fatalf("built URL does not parse: %v", err)
	}
	if parsed.Path != "/v1.0/dln/order/create-tx" {
		t.Errorf("unexpected path %q", parsed.Path)
	}

	params := parsed.Query()
	want := map[string]string{
		"srcChainId":                    "146",
		"srcChainTokenIn":               "0x0000000000000000000000000000000000000000",
		"srcChainTokenInAmount":         "10000000000000000000",
		"dstChainId":                    "1",
		"dstChainTokenOut":              "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"dstChainTokenOutAmount":        "auto",
		"dstChainTokenOutRecipient":     "0x1111111111111111111111111111111111111111",
		"srcChainOrderAuthorityAddress": "0x1111111111111111111111111111111111111111",
		"dstChainOrderAuthorityAddress": "0x1111111111111111111111111111111111111111",
		"affiliateFeePercent":           "0",
		"enableEstimate":                "false",
		"prependOperatingExpenses":      "false",
		"skipSolanaRecipientValidation": "false",
	}
	for key, value := range want {
		if got := params.Get(key); got != value {
			t.Errorf("param %s = %q, want %q", key, got, value)
		}
	}
	if len(params) != len(want) {
		t.Errorf("got %d params, want %d", len(params), len(want))
	}
}

func TestSwapURL(t *testing.T) {
	built := SwapURL(DefaultBaseURL, SwapOrder{
		ChainID:       146,
		TokenIn:       "0x0000000000000000000000000000000000000000",
		TokenInAmount: "5000000",
		TokenOut:      "0x29219dd400f2Bf60E5a23d13Be72B486D4038894",
		Recipient:     "0x1111111111111111111111111111111111111111",
	})

	parsed, err := url.Parse(built)
	if err != nil {
		t.Fatalf("built URL does not parse: %v", err)
	}
	if parsed.Path != "/v1.0/chain/transaction" {
		t.Errorf("unexpected path %q", parsed.Path)
	}

	params := parsed.Query()
	if params.Get("chainId") != "146" {
		t.Errorf("chainId = %q, want 146", params.Get("chainId"))
	}
	if params.Get("slippage") != "auto" {
		t.Errorf("slippage = %q, want auto", params.Get("slippage"))
	}
	if params.Get("tokenInAmount") != "5000000" {
		t.Errorf("tokenInAmount = %q", params.Get("tokenInAmount"))
	}
	if params.Get("tokenOutRecipient") != "0x1111111111111111111111111111111111111111" {
		t.Errorf("tokenOutRecipient = %q", params.Get("tokenOutRecipient"))
	}
	if params.Get("affiliateFeePercent") != "0" {
		t.Errorf("affiliateFeePercent = %q", params.Get("affiliateFeePercent"))
	}
}

func TestTokenListURL(t *testing.T) {
	built := TokenListURL(DefaultBaseURL, 42161)
	want := DefaultBaseURL + "/v1.0/token-list?chainId=42161"
	if built != want {
		t.Errorf("TokenListURL = %q, want %q", built, want)
	}
}
