package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/config"
	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/chat"
	"moopoint/chat-api/internal/domain/llm"
	"moopoint/chat-api/internal/domain/tooluse"
	"moopoint/chat-api/internal/infrastructure/auth"
	"moopoint/chat-api/internal/infrastructure/database"
	"moopoint/chat-api/internal/infrastructure/logger"
	"moopoint/chat-api/internal/infrastructure/mcpclient"
	"moopoint/chat-api/internal/infrastructure/provider"
	apikeyrepo "moopoint/chat-api/internal/infrastructure/repository/apikey"
	conversationrepo "moopoint/chat-api/internal/infrastructure/repository/conversation"
	toolserverrepo "moopoint/chat-api/internal/infrastructure/repository/toolserver"
	"moopoint/chat-api/internal/infrastructure/secrets"
	"moopoint/chat-api/internal/interfaces/httpserver"
	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	cipherKey, err := cfg.CipherKey()
	if err != nil {
		log.Fatal().Err(err).Msg("decode secret key")
	}
	cipher, err := secrets.NewAESCipher(cipherKey)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize credential cipher")
	}

	conversationRepository := conversationrepo.NewRepository(db)
	apikeyRepository := apikeyrepo.NewRepository(db)
	serverRepository := toolserverrepo.NewRepository(db)
	preconfiguredRepository := toolserverrepo.NewPreconfiguredRepository(db)

	toolClient := mcpclient.NewClient(cfg.ServiceName, log)
	resolver := catalog.NewResolver(
		serverRepository,
		preconfiguredRepository,
		toolClient,
		cfg.ToolListTimeout,
		log,
	)
	executor := tooluse.NewExecutor(
		conversationRepository,
		resolver,
		toolClient,
		cfg.ToolCallTimeout,
		log,
	)

	registry := llm.NewRegistry(buildAdapters(cfg)...)

	chatService := chat.NewService(
		conversationRepository,
		apikeyRepository,
		cipher,
		resolver,
		registry,
		executor,
		log,
	)

	handlerProvider := handlers.NewProvider(
		chatService,
		conversationRepository,
		apikeyRepository,
		cipher,
		resolver,
		serverRepository,
		preconfiguredRepository,
		registry,
		log,
	)

	httpServer := httpserver.New(cfg, log, handlerProvider, authValidator)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func buildAdapters(cfg *config.Config) []llm.Adapter {
	adapters := []llm.Adapter{
		provider.NewOpenAI(cfg.OpenAIBaseURL),
		provider.NewAnthropic(cfg.AnthropicBaseURL),
		provider.NewOllama(cfg.OllamaBaseURL),
	}
	if cfg.CompatName != "" {
		adapters = append(adapters, provider.NewOpenAICompat(cfg.CompatName, cfg.CompatBaseURL))
	}
	return adapters
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
