//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"moopoint/chat-api/internal/config"
	"moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/chat"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/domain/llm"
	"moopoint/chat-api/internal/domain/tooluse"
	"moopoint/chat-api/internal/infrastructure/auth"
	"moopoint/chat-api/internal/infrastructure/database"
	"moopoint/chat-api/internal/infrastructure/logger"
	"moopoint/chat-api/internal/infrastructure/mcpclient"
	apikeyrepo "moopoint/chat-api/internal/infrastructure/repository/apikey"
	conversationrepo "moopoint/chat-api/internal/infrastructure/repository/conversation"
	toolserverrepo "moopoint/chat-api/internal/infrastructure/repository/toolserver"
	"moopoint/chat-api/internal/infrastructure/secrets"
	"moopoint/chat-api/internal/interfaces/httpserver"
	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

var chatSet = wire.NewSet(
	conversationrepo.NewRepository,
	wire.Bind(new(conversation.Repository), new(*conversationrepo.Repository)),
	apikeyrepo.NewRepository,
	wire.Bind(new(apikey.Repository), new(*apikeyrepo.Repository)),
	toolserverrepo.NewRepository,
	wire.Bind(new(catalog.ServerRepository), new(*toolserverrepo.Repository)),
	toolserverrepo.NewPreconfiguredRepository,
	wire.Bind(new(catalog.PreconfiguredRepository), new(*toolserverrepo.PreconfiguredRepository)),
	newToolClient,
	wire.Bind(new(catalog.ToolServerClient), new(*mcpclient.Client)),
	newResolver,
	wire.Bind(new(chat.CatalogSource), new(*catalog.Resolver)),
	wire.Bind(new(tooluse.Dispatcher), new(*catalog.Resolver)),
	newExecutor,
	wire.Bind(new(chat.ToolDecider), new(*tooluse.Executor)),
	newCipher,
	wire.Bind(new(apikey.Cipher), new(*secrets.AESCipher)),
	newRegistry,
	chat.NewService,
)

// BuildApplication assembles the chat service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newGormDB,
		newAuthValidator,
		chatSet,
		handlers.NewProvider,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newGormDB(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

func newToolClient(cfg *config.Config, log zerolog.Logger) *mcpclient.Client {
	return mcpclient.NewClient(cfg.ServiceName, log)
}

func newResolver(
	cfg *config.Config,
	servers catalog.ServerRepository,
	preconfigured catalog.PreconfiguredRepository,
	client catalog.ToolServerClient,
	log zerolog.Logger,
) *catalog.Resolver {
	return catalog.NewResolver(servers, preconfigured, client, cfg.ToolListTimeout, log)
}

func newExecutor(
	cfg *config.Config,
	conversations conversation.Repository,
	dispatcher tooluse.Dispatcher,
	client catalog.ToolServerClient,
	log zerolog.Logger,
) *tooluse.Executor {
	return tooluse.NewExecutor(conversations, dispatcher, client, cfg.ToolCallTimeout, log)
}

func newCipher(cfg *config.Config) (*secrets.AESCipher, error) {
	key, err := cfg.CipherKey()
	if err != nil {
		return nil, err
	}
	return secrets.NewAESCipher(key)
}

func newRegistry(cfg *config.Config) *llm.Registry {
	return llm.NewRegistry(buildAdapters(cfg)...)
}
