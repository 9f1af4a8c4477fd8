package tools

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"github.com/alanmarkz/promptifi/internal/models"
)

// Tool is one of the closed set of intents the assistant can execute. The
// dispatcher hands a validated TransactionIntent to Run and streams the
// progress events it emits; the returned component is the settled result for
// the turn.
type Tool interface {
	Name() string
	Definition() llms.Tool
	Run(ctx context.Context, intent *models.TransactionIntent, emit func(models.ProgressEvent)) (*models.ChatComponent, error)
}

// Error codes for the user-visible failure taxonomy.
const (
	CodeResolution  = "RESOLUTION_FAILED"
	CodeRemote      = "REMOTE_REJECTED"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

// ToolError is a user-visible tool failure. Message is rendered in the chat
// as-is; it must name what failed, never transport detail.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *ToolError) Error() string {
	return e.Message
}

// NewToolError creates a new tool error.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
