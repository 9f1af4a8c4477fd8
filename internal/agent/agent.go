package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanmarkz/promptifi/internal/models"
	"github.com/alanmarkz/promptifi/internal/tools"
)

// SignInMessage is the exact assistant reply for unauthenticated turns.
const SignInMessage = "Please sign in to continue."

const systemPrompt = `You are a crypto trading assistant with expertise in blockchain networks, token swapping, and cross-chain bridging. You assist users in executing token swaps and bridges while providing real-time transaction URLs. Additionally, you offer insights on market trends, token analysis, risk management, and general cryptocurrency trading strategies.

Use the BridgeToken tool to bridge tokens between chains. Provide the FromToken, ToToken, FromChainName, ToChainName, amount, and dstChainTokenOutRecipient parameters to generate a bridge transaction.

Use the SwapToken tool to swap tokens in a single chain. Provide the FromToken, ToToken, FromChainName, amount, and dstChainTokenOutRecipient parameters to generate a swap transaction.

Use the PriceTool to get the price and stats of a token. Provide the tokenName parameter to generate a token analysis.`

// ChatAgent dispatches conversation turns: it lets the model pick one of the
// registered tools, validates the extracted parameters, runs the tool, and
// returns the appended history. History is threaded explicitly; the agent
// holds no conversation state of its own.
type ChatAgent struct {
	llm    *llmRetryWrapper
	tools  map[string]tools.Tool
	defs   []llms.Tool
	locker TurnLocker
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewChatAgent wires a model and a toolset into a dispatcher.
func NewChatAgent(llm llms.Model, toolset []tools.Tool, locker TurnLocker, logger zerolog.Logger) *ChatAgent {
	byName := make(map[string]tools.Tool, len(toolset))
	defs := make([]llms.Tool, 0, len(toolset))
	for _, tool := range toolset {
		byName[tool.Name()] = tool
		defs = append(defs, tool.Definition())
	}
	return &ChatAgent{
		llm:    newLLMRetryWrapper(llm, DefaultLLMRetryConfig(), logger),
		tools:  byName,
		defs:   defs,
		locker: locker,
		logger: logger.With().Str("component", "agent").Logger(),
		tracer: otel.Tracer("agent"),
	}
}

// NewOpenAIModel initializes the backing model.
func NewOpenAIModel(apiKey, model string) (llms.Model, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}
	llm, err := openai.New(
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}
	return llm, nil
}

// Turn processes one conversation turn and returns only the settled result.
func (a *ChatAgent) Turn(ctx context.Context, req *models.ChatRequest, wallet string) (*models.ChatResponse, error) {
	return a.TurnWithProgress(ctx, req, wallet, func(models.ProgressEvent) {})
}

// TurnWithProgress processes one conversation turn, emitting progress events
// as the dispatch pipeline advances. The placeholder event for a selected
// tool is emitted synchronously before any network call; the settled reply is
// returned, never streamed partially.
func (a *ChatAgent) TurnWithProgress(ctx context.Context, req *models.ChatRequest, wallet string, emit func(models.ProgressEvent)) (*models.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "agent.Turn",
		trace.WithAttributes(attribute.String("conversation_id", req.ConversationID)))
	defer span.End()

	// The only authorization check in the pipeline: no wallet, no turn, and
	// no network traffic of any kind.
	if wallet == "" {
		return a.reply(req, models.TextComponent(SignInMessage)), nil
	}

	unlock, err := a.locker.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, msg := range req.History {
		role := llms.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))

	response, err := a.llm.GenerateContent(ctx, messages,
		llms.WithTools(a.defs), llms.WithToolChoice("auto"))
	if err != nil {
		a.logger.Error().Err(err).Msg("model call failed")
		return a.reply(req, models.TextComponent("The assistant is currently unavailable. Please try again later.")), nil
	}
	if len(response.Choices) == 0 {
		return a.reply(req, models.TextComponent("The assistant is currently unavailable. Please try again later.")), nil
	}
	choice := response.Choices[0]

	// Plain conversational reply, no tool selected.
	if len(choice.ToolCalls) == 0 {
		return a.reply(req, models.TextComponent(choice.Content)), nil
	}

	// Only one tool call is resolved per user turn.
	call := choice.ToolCalls[0]
	emit(models.StateEvent(models.StateToolSelected, call.FunctionCall.Name))

	intent, err := models.ParseIntent(call.FunctionCall.Name, call.FunctionCall.Arguments, wallet)
	if err != nil {
		emit(models.ProgressEvent{Type: "state", State: models.StateErrored, Error: err.Error(), Timestamp: time.Now().UTC()})
		return a.reply(req, models.TextComponent(err.Error())), nil
	}

	tool, ok := a.tools[call.FunctionCall.Name]
	if !ok {
		return a.reply(req, models.TextComponent(fmt.Sprintf("Unknown tool %q requested.", call.FunctionCall.Name))), nil
	}

	// Optimistic placeholder: shown immediately, settled below.
	emit(models.PlaceholderEvent(intent.Kind))

	component, err := tool.Run(ctx, intent, emit)
	if err != nil {
		a.logger.Info().Err(err).Str("tool", tool.Name()).Msg("tool run failed")
		emit(models.ProgressEvent{Type: "state", State: models.StateErrored, Error: err.Error(), Timestamp: time.Now().UTC()})
		return a.reply(req, models.TextComponent(err.Error())), nil
	}

	emit(models.StateEvent(models.StateRendered, string(component.Kind)))
	return a.reply(req, component), nil
}

// reply builds the ChatResponse for a settled turn, appending the user input
// and the assistant's reply to an untouched copy of the incoming history.
func (a *ChatAgent) reply(req *models.ChatRequest, component *models.ChatComponent) *models.ChatResponse {
	appended := make([]models.ConversationMessage, 0, len(req.History)+2)
	appended = append(appended, req.History...)
	appended = append(appended,
		models.ConversationMessage{Role: models.RoleUser, Content: req.Message},
		models.ConversationMessage{Role: models.RoleAssistant, Content: historyContent(component)},
	)
	return &models.ChatResponse{
		ConversationID: req.ConversationID,
		Reply:          component,
		History:        appended,
	}
}

// historyContent flattens a rendered component into the text form carried as
// model context on later turns.
func historyContent(component *models.ChatComponent) string {
	switch component.Kind {
	case models.ComponentText:
		return component.Text
	case models.ComponentBridge:
		return "Created a bridge transaction for the user."
	case models.ComponentSwap:
		return "Created a swap transaction for the user."
	case models.ComponentTokenQuote:
		if component.Quote != nil {
			return fmt.Sprintf("Showed a market quote for %s (%s): $%.6f.",
				component.Quote.Name, component.Quote.Symbol, component.Quote.Price)
		}
		return "Showed a market quote."
	default:
		return component.Text
	}
}
