package debridge

import (
	"net/url"
	"strconv"
)

// DefaultBaseURL is the hosted DLN API endpoint.
const DefaultBaseURL = "https://dln.debridge.finance"

// BridgeOrder holds the fully-resolved inputs for a cross-chain order. All
// amounts are integer base-unit strings (see ScaleAmount).
type BridgeOrder struct {
	SrcChainID            int64
	SrcChainTokenIn       string
	SrcChainTokenInAmount string
	DstChainID            int64
	DstChainTokenOut      string
	Recipient             string
	SrcOrderAuthority     string
	DstOrderAuthority     string
}

// SwapOrder holds the fully-resolved inputs for a same-chain swap.
type SwapOrder struct {
	ChainID       int64
	TokenIn       string
	TokenInAmount string
	TokenOut      string
	Recipient     string
}

// BridgeOrderURL formats the order-creation request URL. Pure string
// formatting: malformed inputs simply produce a URL the remote service will
// reject.
func BridgeOrderURL(baseURL string, order BridgeOrder) string {
	params := url.Values{}
	params.Set("srcChainId", strconv.FormatInt(order.SrcChainID, 10))
	params.Set("srcChainTokenIn", order.SrcChainTokenIn)
	params.Set("srcChainTokenInAmount", order.SrcChainTokenInAmount)
	params.Set("dstChainId", strconv.FormatInt(order.DstChainID, 10))
	params.Set("dstChainTokenOut", order.DstChainTokenOut)
	params.Set("dstChainTokenOutAmount", "auto")
	params.Set("dstChainTokenOutRecipient", order.Recipient)
	params.Set("srcChainOrderAuthorityAddress", order.SrcOrderAuthority)
	params.Set("affiliateFeePercent", "0")
	params.Set("dstChainOrderAuthorityAddress", order.DstOrderAuthority)
	params.Set("enableEstimate", "false")
	params.Set("prependOperatingExpenses", "false")
	params.Set("skipSolanaRecipientValidation", "false")
	return baseURL + "/v1.0/dln/order/create-tx?" + params.Encode()
}

// SwapURL formats the same-chain swap quote URL.
func SwapURL(baseURL string, order SwapOrder) string {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(order.ChainID, 10))
	params.Set("tokenIn", order.TokenIn)
	params.Set("tokenInAmount", order.TokenInAmount)
	params.Set("slippage", "auto")
	params.Set("tokenOut", order.TokenOut)
	params.Set("tokenOutRecipient", order.Recipient)
	params.Set("affiliateFeePercent", "0")
	return baseURL + "/v1.0/chain/transaction?" + params.Encode()
}

// TokenListURL formats the per-chain token directory URL.
func TokenListURL(baseURL string, chainID int64) string {
	params := url.Values{}
	params.Set("chainId", strconv.FormatInt(chainID, 10))
	return baseURL + "/v1.0/token-list?" + params.Encode()
}
