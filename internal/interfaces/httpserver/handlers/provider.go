package handlers

import (
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/chat"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/domain/llm"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat         *ChatHandler
	Conversation *ConversationHandler
	APIKey       *APIKeyHandler
	ToolServer   *ToolServerHandler
	Model        *ModelHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	chatService *chat.Service,
	conversations conversation.Repository,
	apikeys apikey.Repository,
	cipher apikey.Cipher,
	resolver *catalog.Resolver,
	servers catalog.ServerRepository,
	preconfigured catalog.PreconfiguredRepository,
	providers *llm.Registry,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Chat:         NewChatHandler(chatService, log),
		Conversation: NewConversationHandler(conversations, log),
		APIKey:       NewAPIKeyHandler(apikeys, cipher, log),
		ToolServer:   NewToolServerHandler(resolver, servers, preconfigured, log),
		Model:        NewModelHandler(providers, log),
	}
}
