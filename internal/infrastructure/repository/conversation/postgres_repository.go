package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/infrastructure/database/entities"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// Repository persists conversations, messages and tool use state.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the conversation record.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)
	if entity.PublicID == "" {
		entity.PublicID = uuid.New().String()
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"7a92c4e1-0d5b-4f68-b3a7-e19c68d2f405",
		)
	}

	conv.ID = entity.ID
	conv.PublicID = entity.PublicID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindByPublicID fetches a conversation owned by the user, messages included.
func (r *Repository) FindByPublicID(ctx context.Context, userID, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Messages.ToolUse").
		Where("public_id = ? AND user_id = ?", publicID, userID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("conversation not found: %s", publicID),
				nil,
				"c3e85f12-4b09-47da-9261-a07f5e8c1d36",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch conversation",
			err,
			"58d1b7f9-2e64-4c03-8a5d-91c4e6f0b728",
		)
	}

	return entity.EtoD(), nil
}

// ListByUser fetches the user's conversations newest first, without messages.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"e60a3d25-81cf-49b4-bd72-f4a9c1e8d503",
		)
	}

	conversations := make([]domain.Conversation, len(rows))
	for i := range rows {
		conversations[i] = *rows[i].EtoD()
	}
	return conversations, nil
}

// Delete removes a conversation and its messages.
func (r *Repository) Delete(ctx context.Context, userID, publicID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.Conversation
		if err := tx.Where("public_id = ? AND user_id = ?", publicID, userID).
			First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return platformerrors.NewError(
					ctx,
					platformerrors.LayerRepository,
					platformerrors.ErrorTypeNotFound,
					fmt.Sprintf("conversation not found: %s", publicID),
					nil,
					"1f7c0a83-95de-4b26-8e41-d2b6f9a0c715",
				)
			}
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeDatabaseError,
				"failed to fetch conversation",
				err,
				"b4e29c60-7f18-4da5-93c2-06a8d5e1f374",
			)
		}

		var messageIDs []uint
		if err := tx.Model(&entities.Message{}).
			Where("conversation_id = ?", entity.ID).
			Pluck("id", &messageIDs).Error; err != nil {
			return err
		}
		if len(messageIDs) > 0 {
			if err := tx.Where("message_id IN ?", messageIDs).
				Delete(&entities.ToolUse{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("conversation_id = ?", entity.ID).
			Delete(&entities.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity).Error
	})
}

// UpdateTitle sets the conversation title.
func (r *Repository) UpdateTitle(ctx context.Context, conversationID uint, title string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("id = ?", conversationID).
		Update("title", title)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation title",
			result.Error,
			"92d6f1b8-3a04-4c7e-a5d9-81e0c3f7b246",
		)
	}
	return nil
}

// AppendMessage inserts one message, including its tool use row when set.
func (r *Repository) AppendMessage(ctx context.Context, msg *domain.Message) error {
	entity := entities.NewSchemaMessage(msg)
	if entity.PublicID == "" {
		entity.PublicID = uuid.New().String()
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to append message",
			err,
			"0a5e8d37-6c21-4fb9-82e4-d91b7f3c6a50",
		)
	}

	msg.ID = entity.ID
	msg.PublicID = entity.PublicID
	msg.CreatedAt = entity.CreatedAt
	if msg.ToolUse != nil && entity.ToolUse != nil {
		msg.ToolUse.ID = entity.ToolUse.ID
		msg.ToolUse.MessageID = entity.ID
	}
	return nil
}

// ListMessages fetches the messages of a conversation in replay order.
func (r *Repository) ListMessages(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	var rows []entities.Message
	if err := r.db.WithContext(ctx).
		Preload("ToolUse").
		Where("conversation_id = ?", conversationID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"d87b2c40-19ae-4f53-b6c8-3e05a9f1d762",
		)
	}

	messages := make([]domain.Message, len(rows))
	for i := range rows {
		messages[i] = *rows[i].EtoD()
	}
	return messages, nil
}

// UpdateToolUseState moves a tool use out of pending. The guard clause keeps
// the transition one-shot even under concurrent decisions.
func (r *Repository) UpdateToolUseState(ctx context.Context, toolUseID uint, state domain.ToolUseState) error {
	result := r.db.WithContext(ctx).
		Model(&entities.ToolUse{}).
		Where("id = ? AND state = ?", toolUseID, string(domain.ToolUsePending)).
		Update("state", string(state))
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update tool use state",
			result.Error,
			"6b3f9e05-d47a-4821-90cf-5a2d8c1e7b49",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeConflict,
			fmt.Sprintf("tool use %d is not pending", toolUseID),
			nil,
			"fc18a6d2-40e7-4b95-8132-9d6c0b5f3ea4",
		)
	}
	return nil
}
