package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/agent"
	"github.com/alanmarkz/promptifi/internal/api"
	"github.com/alanmarkz/promptifi/internal/auth"
	"github.com/alanmarkz/promptifi/internal/data"
	"github.com/alanmarkz/promptifi/internal/debridge"
	"github.com/alanmarkz/promptifi/internal/history"
	"github.com/alanmarkz/promptifi/internal/market"
	"github.com/alanmarkz/promptifi/internal/models"
	"github.com/alanmarkz/promptifi/internal/portfolio"
	"github.com/alanmarkz/promptifi/internal/resolve"
	"github.com/alanmarkz/promptifi/internal/tools"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file found or error loading it: %v\n", err)
	}

	var (
		httpAddr     = flag.String("http-addr", ":8080", "HTTP server address")
		openaiKey    = flag.String("openai-key", "", "OpenAI API key (can also be set via OPENAI_API_KEY env var)")
		openaiModel  = flag.String("openai-model", "", "OpenAI model name (can also be set via OPENAI_MODEL env var)")
		cmcKey       = flag.String("cmc-key", "", "CoinMarketCap API key (can also be set via COINMARKETCAP_API_KEY env var)")
		alchemyKey   = flag.String("alchemy-key", "", "Alchemy API key (can also be set via ALCHEMY_API_KEY env var)")
		etherscanKey = flag.String("etherscan-key", "", "Etherscan API key (can also be set via ETHERSCAN_API_KEY env var)")
		redisAddr    = flag.String("redis-addr", "", "Redis address for cache and turn locks (can also be set via REDIS_ADDR env var)")
		redisPass    = flag.String("redis-password", "", "Redis password (can also be set via REDIS_PASSWORD env var)")
		dynamoTable  = flag.String("dynamo-table", "", "DynamoDB cache table name (can also be set via DYNAMO_TABLE env var)")
		databaseURL  = flag.String("database-url", "", "Postgres URL for conversation history (can also be set via DATABASE_URL env var)")
		prompt       = flag.String("prompt", "", "Run a single prompt and print the reply instead of serving")
		wallet       = flag.String("wallet", "", "Wallet address for -prompt mode recipient defaults")
		showVersion  = flag.Bool("version", false, "Show version and exit")
		verbose      = flag.Bool("v", false, "Verbose mode - debug-level logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("PromptiFi v1.0.0")
		fmt.Println("AI-powered cross-chain bridging and swapping assistant")
		os.Exit(0)
	}

	logger := newLogger(*verbose)

	apiKey := envFallback(*openaiKey, "OPENAI_API_KEY")
	if apiKey == "" {
		logger.Fatal().Msg("OpenAI API key is required. Set OPENAI_API_KEY environment variable or use -openai-key flag")
	}
	model := envFallback(*openaiModel, "OPENAI_MODEL")
	marketKey := envFallback(*cmcKey, "COINMARKETCAP_API_KEY")
	redis := envFallback(*redisAddr, "REDIS_ADDR")

	ctx := context.Background()

	connector, redisClient := newConnector(ctx, redis, envFallback(*redisPass, "REDIS_PASSWORD"), envFallback(*dynamoTable, "DYNAMO_TABLE"), logger)
	defer connector.Close()
	cache := data.NewCache(connector, "promptifi", time.Hour)

	bridgeClient := debridge.NewClient(debridge.DefaultBaseURL, cache, logger)
	resolver := resolve.NewResolver(bridgeClient, logger)
	marketClient := market.NewClient(market.DefaultBaseURL, marketKey, cache, logger)

	toolset := []tools.Tool{
		tools.NewBridgeTool(resolver, bridgeClient, debridge.DefaultBaseURL, logger),
		tools.NewSwapTool(resolver, bridgeClient, debridge.DefaultBaseURL, logger),
		tools.NewPriceTool(marketClient, logger),
	}

	llm, err := agent.NewOpenAIModel(apiKey, model)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize model")
	}

	var locker agent.TurnLocker = agent.NewLocalLocker()
	if redisClient != nil {
		locker = agent.NewRedsyncLocker(redisClient.Client())
	}
	chatAgent := agent.NewChatAgent(llm, toolset, locker, logger)

	if *prompt != "" {
		runPrompt(ctx, chatAgent, *prompt, envFallback(*wallet, "WALLET_ADDRESS"), logger)
		return
	}

	authService := auth.NewService(cache, logger)
	portfolioService := portfolio.NewService(
		portfolio.NewAlchemyClient("", envFallback(*alchemyKey, "ALCHEMY_API_KEY"), logger),
		portfolio.NewEtherscanClient("", envFallback(*etherscanKey, "ETHERSCAN_API_KEY"), logger),
		marketClient,
		logger,
	)
	historyStore := newHistoryStore(ctx, envFallback(*databaseURL, "DATABASE_URL"), logger)
	defer historyStore.Close()

	runServer(*httpAddr, chatAgent, authService, portfolioService, historyStore, logger)
}

// runPrompt executes one conversation turn from the command line and prints
// the settled reply.
func runPrompt(ctx context.Context, chatAgent *agent.ChatAgent, prompt, wallet string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	request := &models.ChatRequest{
		ConversationID: "cli",
		Message:        prompt,
	}
	response, err := chatAgent.TurnWithProgress(ctx, request, wallet, func(event models.ProgressEvent) {
		if event.Type == "placeholder" && event.Component != nil {
			fmt.Println(event.Component.Text)
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to process prompt")
	}

	reply := response.Reply
	switch reply.Kind {
	case models.ComponentText:
		fmt.Println(reply.Text)
	case models.ComponentTokenQuote:
		fmt.Println(models.ToJSON(reply.Quote))
	default:
		fmt.Println(string(reply.Transaction))
	}
}

func runServer(httpAddr string, chatAgent *agent.ChatAgent, authService *auth.Service, portfolioService *portfolio.Service, historyStore history.Store, logger zerolog.Logger) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	server := api.NewServer(httpAddr, chatAgent, authService, portfolioService, historyStore, logger)
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().Str("address", httpAddr).Msg("PromptiFi service started")

	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case err := <-errChan:
		logger.Error().Err(err).Msg("Server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}
	logger.Info().Msg("Shutdown completed")
}

// newConnector picks the cache backend: Redis when configured, DynamoDB as
// the managed alternative, in-process memory otherwise. The Redis client is
// also returned so turn locks can share it.
func newConnector(ctx context.Context, redisAddr, redisPassword, dynamoTable string, logger zerolog.Logger) (data.Connector, *data.RedisConnector) {
	if redisAddr != "" {
		connector, err := data.NewRedisConnector(ctx, redisAddr, redisPassword, 0)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", redisAddr).Msg("Using Redis cache")
		return connector, connector
	}
	if dynamoTable != "" {
		connector, err := data.NewDynamoConnector(dynamoTable)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to DynamoDB")
		}
		logger.Info().Str("table", dynamoTable).Msg("Using DynamoDB cache")
		return connector, nil
	}
	connector, err := data.NewMemoryConnector(64 << 20)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create memory cache")
	}
	logger.Info().Msg("Using in-process memory cache")
	return connector, nil
}

func newHistoryStore(ctx context.Context, databaseURL string, logger zerolog.Logger) history.Store {
	if databaseURL == "" {
		logger.Info().Msg("No DATABASE_URL configured, conversation history is in-memory only")
		return history.NewMemoryStore()
	}
	store, err := history.NewPostgresStore(ctx, databaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to history database")
	}
	logger.Info().Msg("Using Postgres conversation history")
	return store
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func envFallback(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}
