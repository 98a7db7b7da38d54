package handlers

import (
	"time"

	"moopoint/chat-api/internal/domain/conversation"
)

// MessageDTO is the wire form of one persisted message.
type MessageDTO struct {
	ID             string      `json:"id"`
	ConversationID uint        `json:"-"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	Model          *string     `json:"model,omitempty"`
	Provider       *string     `json:"provider,omitempty"`
	Sequence       int         `json:"sequence"`
	ToolUse        *ToolUseDTO `json:"tool_use,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ToolUseDTO is the wire form of a tool call proposal's lifecycle row.
type ToolUseDTO struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	State     string         `json:"state"`
}

func messageToDTO(msg *conversation.Message) MessageDTO {
	dto := MessageDTO{
		ID:        msg.PublicID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Model:     msg.Model,
		Provider:  msg.Provider,
		Sequence:  msg.Sequence,
		CreatedAt: msg.CreatedAt,
	}
	if msg.ToolUse != nil {
		dto.ToolUse = &ToolUseDTO{
			Name:      msg.ToolUse.Name,
			Arguments: msg.ToolUse.Args,
			State:     string(msg.ToolUse.State),
		}
	}
	return dto
}

// ConversationDTO is the wire form of a conversation summary.
type ConversationDTO struct {
	ID        string       `json:"id"`
	Title     *string      `json:"title,omitempty"`
	Messages  []MessageDTO `json:"messages,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func conversationToDTO(conv *conversation.Conversation, withMessages bool) ConversationDTO {
	dto := ConversationDTO{
		ID:        conv.PublicID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if withMessages {
		dto.Messages = make([]MessageDTO, len(conv.Messages))
		for i := range conv.Messages {
			dto.Messages[i] = messageToDTO(&conv.Messages[i])
		}
	}
	return dto
}
