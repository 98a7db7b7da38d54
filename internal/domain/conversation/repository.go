package conversation

import "context"

// Repository is the message store contract. Messages are append-only; the only
// mutations are the single title update and the one-shot tool use state
// transition.
type Repository interface {
	Create(ctx context.Context, conv *Conversation) error
	FindByPublicID(ctx context.Context, userID, publicID string) (*Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]Conversation, error)
	Delete(ctx context.Context, userID, publicID string) error
	UpdateTitle(ctx context.Context, conversationID uint, title string) error

	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID uint) ([]Message, error)
	UpdateToolUseState(ctx context.Context, toolUseID uint, state ToolUseState) error
}
