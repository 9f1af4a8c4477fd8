package models

import (
	"encoding/json"
	"time"
)

// ChainDescriptor is one entry of the bundled deBridge chain directory.
type ChainDescriptor struct {
	ChainID   int64  `json:"chainId"`
	ChainName string `json:"chainName"`
}

// TokenDescriptor describes one token from a per-chain token list.
type TokenDescriptor struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// ResolvedToken is the output of token resolution: the on-chain address and
// the decimals needed to scale user amounts to base units.
type ResolvedToken struct {
	TokenAddress  string `json:"token_address"`
	TokenDecimals int    `json:"token_decimals"`
}

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one entry of the append-only conversation history.
// History is threaded explicitly through each turn: the agent receives the
// prior messages as a value and returns the appended slice, it never mutates
// ambient state.
type ConversationMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ComponentKind identifies what the UI should render for an assistant reply.
type ComponentKind string

const (
	ComponentText        ComponentKind = "text"
	ComponentBridge      ComponentKind = "bridge_transaction"
	ComponentSwap        ComponentKind = "swap_transaction"
	ComponentTokenQuote  ComponentKind = "token_quote"
	ComponentPlaceholder ComponentKind = "placeholder"
)

// ChatComponent is the rendered result of one assistant turn. Exactly one of
// the payload fields is set, matching Kind.
type ChatComponent struct {
	Kind        ComponentKind   `json:"kind"`
	Text        string          `json:"text,omitempty"`
	Transaction json.RawMessage `json:"transaction,omitempty"`
	Quote       *TokenQuote     `json:"quote,omitempty"`
}

// TextComponent wraps a plain assistant message.
func TextComponent(text string) *ChatComponent {
	return &ChatComponent{Kind: ComponentText, Text: text}
}

// TokenQuote is the market data rendered by the price tool.
type TokenQuote struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	Slug              string    `json:"slug"`
	Price             float64   `json:"price"`
	PercentChange1h   float64   `json:"percent_change_1h"`
	PercentChange24h  float64   `json:"percent_change_24h"`
	PercentChange7d   float64   `json:"percent_change_7d"`
	MarketCap         float64   `json:"market_cap"`
	Volume24h         float64   `json:"volume_24h"`
	CirculatingSupply float64   `json:"circulating_supply"`
	TotalSupply       float64   `json:"total_supply"`
	LastUpdated       time.Time `json:"last_updated"`
}

// ChatRequest is the input for one conversation turn.
type ChatRequest struct {
	ConversationID string                `json:"conversation_id"`
	Message        string                `json:"message"`
	History        []ConversationMessage `json:"history,omitempty"`
}

// ChatResponse carries the settled result of one turn plus the appended
// history the client should carry into the next turn.
type ChatResponse struct {
	ConversationID string                `json:"conversation_id"`
	Reply          *ChatComponent        `json:"reply"`
	History        []ConversationMessage `json:"history"`
}

// ToJSON converts any struct to a JSON string, swallowing marshal errors.
func ToJSON(v interface{}) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}
