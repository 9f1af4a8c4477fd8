package models

import "time"

// TurnState tracks where a conversation turn is in the dispatch pipeline.
type TurnState string

const (
	StateIdle                TurnState = "idle"
	StateToolSelected        TurnState = "tool_selected"
	StateParametersExtracted TurnState = "parameters_extracted"
	StateResolving           TurnState = "resolving"
	StateQuoteFetching       TurnState = "quote_fetching"
	StateRendered            TurnState = "rendered"
	StateErrored             TurnState = "errored"
)

// ProgressEvent is one streamed update for a conversation turn. The first
// event after a tool is selected is always an optimistic placeholder, emitted
// before any network call; the last is either "complete" or "error".
type ProgressEvent struct {
	Type      string         `json:"type"` // placeholder, state, complete, error
	State     TurnState      `json:"state,omitempty"`
	Message   string         `json:"message,omitempty"`
	Component *ChatComponent `json:"component,omitempty"`
	Response  *ChatResponse  `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PlaceholderEvent builds the in-progress placeholder for a tool kind.
func PlaceholderEvent(kind IntentKind) ProgressEvent {
	var text string
	switch kind {
	case IntentBridge:
		text = "Creating bridge transaction..."
	case IntentSwap:
		text = "Creating swap transaction..."
	case IntentPrice:
		text = "Analyzing token..."
	default:
		text = "Working..."
	}
	return ProgressEvent{
		Type:      "placeholder",
		State:     StateParametersExtracted,
		Component: &ChatComponent{Kind: ComponentPlaceholder, Text: text},
		Timestamp: time.Now().UTC(),
	}
}

// StateEvent builds an intermediate pipeline-state update.
func StateEvent(state TurnState, message string) ProgressEvent {
	return ProgressEvent{
		Type:      "state",
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
