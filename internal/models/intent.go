package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IntentKind is the closed set of tool intents the assistant can execute.
type IntentKind string

const (
	IntentBridge IntentKind = "bridge"
	IntentSwap   IntentKind = "swap"
	IntentPrice  IntentKind = "price"
)

// Tool names as advertised to the model. The dispatcher only accepts calls
// naming one of these three.
const (
	ToolNameBridge = "BridgeToken"
	ToolNameSwap   = "SwapToken"
	ToolNamePrice  = "PriceTool"
)

// TransactionIntent is the validated form of a model tool call. It is
// ephemeral per conversation turn; an intent is only actionable once the
// resolver has mapped its chain and token names to ids and addresses.
type TransactionIntent struct {
	Kind      IntentKind `json:"kind"`
	FromToken string     `json:"from_token,omitempty"`
	ToToken   string     `json:"to_token,omitempty"`
	FromChain string     `json:"from_chain,omitempty"`
	ToChain   string     `json:"to_chain,omitempty"`
	Amount    string     `json:"amount,omitempty"` // decimal string, validated positive
	Recipient string     `json:"recipient,omitempty"`
	TokenName string     `json:"token_name,omitempty"` // price lookups only
}

// bridgeArgs mirrors the parameter schema advertised for BridgeToken.
type bridgeArgs struct {
	FromToken                 string `json:"FromToken"`
	ToToken                   string `json:"ToToken"`
	FromChainName             string `json:"FromChainName"`
	ToChainName               string `json:"ToChainName"`
	Amount                    string `json:"amount"`
	DstChainTokenOutRecipient string `json:"dstChainTokenOutRecipient"`
}

// swapArgs mirrors the parameter schema advertised for SwapToken.
type swapArgs struct {
	FromToken                 string `json:"FromToken"`
	ToToken                   string `json:"ToToken"`
	FromChainName             string `json:"FromChainName"`
	Amount                    string `json:"amount"`
	DstChainTokenOutRecipient string `json:"dstChainTokenOutRecipient"`
}

// priceArgs mirrors the parameter schema advertised for PriceTool.
type priceArgs struct {
	TokenName string `json:"tokenName"`
}

// IntentError describes a rejected tool call. The message is user-facing and
// names the field that failed.
type IntentError struct {
	Field   string
	Message string
}

func (e *IntentError) Error() string {
	return e.Message
}

// ParseIntent validates a raw model tool call against the closed intent
// union. Malformed or partially-filled payloads are rejected here, before any
// resolution or arithmetic is attempted. defaultRecipient is the
// authenticated wallet, used when the model supplies no explicit recipient.
func ParseIntent(toolName string, rawArgs string, defaultRecipient string) (*TransactionIntent, error) {
	switch toolName {
	case ToolNameBridge:
		var args bridgeArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, &IntentError{Field: "arguments", Message: "I couldn't understand the bridge request. Please rephrase it."}
		}
		intent := &TransactionIntent{
			Kind:      IntentBridge,
			FromToken: strings.TrimSpace(args.FromToken),
			ToToken:   strings.TrimSpace(args.ToToken),
			FromChain: strings.TrimSpace(args.FromChainName),
			ToChain:   strings.TrimSpace(args.ToChainName),
			Amount:    strings.TrimSpace(args.Amount),
			Recipient: pickRecipient(args.DstChainTokenOutRecipient, defaultRecipient),
		}
		return intent, intent.validate()

	case ToolNameSwap:
		var args swapArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, &IntentError{Field: "arguments", Message: "I couldn't understand the swap request. Please rephrase it."}
		}
		intent := &TransactionIntent{
			Kind:      IntentSwap,
			FromToken: strings.TrimSpace(args.FromToken),
			ToToken:   strings.TrimSpace(args.ToToken),
			FromChain: strings.TrimSpace(args.FromChainName),
			Amount:    strings.TrimSpace(args.Amount),
			Recipient: pickRecipient(args.DstChainTokenOutRecipient, defaultRecipient),
		}
		return intent, intent.validate()

	case ToolNamePrice:
		var args priceArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return nil, &IntentError{Field: "arguments", Message: "I couldn't understand the price request. Please rephrase it."}
		}
		intent := &TransactionIntent{
			Kind:      IntentPrice,
			TokenName: strings.TrimSpace(args.TokenName),
		}
		return intent, intent.validate()

	default:
		return nil, &IntentError{Field: "tool", Message: fmt.Sprintf("Unknown tool %q requested.", toolName)}
	}
}

func pickRecipient(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}

// validate enforces field presence per kind and the positive-amount rule.
func (i *TransactionIntent) validate() error {
	switch i.Kind {
	case IntentBridge:
		if i.FromToken == "" {
			return &IntentError{Field: "FromToken", Message: "Which token do you want to bridge?"}
		}
		if i.ToToken == "" {
			return &IntentError{Field: "ToToken", Message: "Which token do you want to receive?"}
		}
		if i.FromChain == "" {
			return &IntentError{Field: "FromChainName", Message: "Which chain are you bridging from?"}
		}
		if i.ToChain == "" {
			return &IntentError{Field: "ToChainName", Message: "Which chain are you bridging to?"}
		}
		return validateAmount(i.Amount)

	case IntentSwap:
		if i.FromToken == "" {
			return &IntentError{Field: "FromToken", Message: "Which token do you want to swap?"}
		}
		if i.ToToken == "" {
			return &IntentError{Field: "ToToken", Message: "Which token do you want to receive?"}
		}
		if i.FromChain == "" {
			return &IntentError{Field: "FromChainName", Message: "Which chain should the swap run on?"}
		}
		return validateAmount(i.Amount)

	case IntentPrice:
		if i.TokenName == "" {
			return &IntentError{Field: "tokenName", Message: "Which token do you want a price for?"}
		}
		return nil

	default:
		return &IntentError{Field: "kind", Message: fmt.Sprintf("Unknown intent kind %q.", i.Kind)}
	}
}

// validateAmount rejects non-numeric, non-positive, and malformed decimal
// strings before any scaling arithmetic is attempted.
func validateAmount(amount string) error {
	reject := &IntentError{Field: "amount", Message: "The amount must be a positive number."}
	if amount == "" {
		return reject
	}
	intPart, fracPart, _ := strings.Cut(amount, ".")
	if intPart == "" && fracPart == "" {
		return reject
	}
	positive := false
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return reject
		}
		if r != '0' {
			positive = true
		}
	}
	for _, r := range fracPart {
		if r < '0' || r > '9' {
			return reject
		}
		if r != '0' {
			positive = true
		}
	}
	if !positive {
		return reject
	}
	return nil
}
