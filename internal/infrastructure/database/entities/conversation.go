package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"moopoint/chat-api/internal/domain/conversation"
)

// Conversation represents the database schema for conversations
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID   string  `gorm:"type:varchar(64);index;not null"`
	Title    *string `gorm:"type:varchar(256)"`

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// Message stores one conversation entry. Tool call arguments travel on the
// attached ToolUse row, not on the message content.
type Message struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	PublicID       string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint      `gorm:"index:idx_message_conversation_sequence;not null"`
	Role           string    `gorm:"type:varchar(32);not null"`
	Content        string    `gorm:"type:text"`
	Model          *string   `gorm:"type:varchar(128)"`
	Provider       *string   `gorm:"type:varchar(32)"`
	Sequence       int       `gorm:"index:idx_message_conversation_sequence;not null"`

	ToolUse *ToolUse `gorm:"foreignKey:MessageID"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// ToolUse stores the approval lifecycle of one proposed tool call.
type ToolUse struct {
	ID        uint           `gorm:"primaryKey"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	MessageID uint           `gorm:"uniqueIndex;not null"`
	Name      string         `gorm:"type:varchar(64);not null"`
	Args      datatypes.JSON `gorm:"type:jsonb"`
	State     string         `gorm:"type:varchar(16);not null;default:'pending'"`
	ToolID    *uint          `gorm:"index"`
}

// TableName specifies the table name for ToolUse.
func (ToolUse) TableName() string {
	return "tool_uses"
}

// EtoD converts database entity to domain model
func (c *Conversation) EtoD() *conversation.Conversation {
	messages := make([]conversation.Message, len(c.Messages))
	for i, msg := range c.Messages {
		messages[i] = *msg.EtoD()
	}

	return &conversation.Conversation{
		ID:        c.ID,
		PublicID:  c.PublicID,
		UserID:    c.UserID,
		Title:     c.Title,
		Messages:  messages,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewSchemaConversation creates a database entity from domain model
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		ID:       c.ID,
		PublicID: c.PublicID,
		UserID:   c.UserID,
		Title:    c.Title,
	}
}

// EtoD converts database entity to domain model
func (m *Message) EtoD() *conversation.Message {
	msg := &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           conversation.Role(m.Role),
		Content:        m.Content,
		Model:          m.Model,
		Provider:       m.Provider,
		Sequence:       m.Sequence,
		CreatedAt:      m.CreatedAt,
	}
	if m.ToolUse != nil {
		msg.ToolUse = m.ToolUse.EtoD()
	}
	return msg
}

// NewSchemaMessage creates a database entity from domain model
func NewSchemaMessage(m *conversation.Message) *Message {
	entity := &Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Model:          m.Model,
		Provider:       m.Provider,
		Sequence:       m.Sequence,
	}
	if m.ToolUse != nil {
		entity.ToolUse = NewSchemaToolUse(m.ToolUse)
	}
	return entity
}

// EtoD converts database entity to domain model
func (t *ToolUse) EtoD() *conversation.ToolUse {
	var args map[string]any
	if len(t.Args) > 0 {
		_ = json.Unmarshal(t.Args, &args)
	}
	return &conversation.ToolUse{
		ID:        t.ID,
		MessageID: t.MessageID,
		Name:      t.Name,
		Args:      args,
		State:     conversation.ToolUseState(t.State),
		ToolID:    t.ToolID,
	}
}

// NewSchemaToolUse creates a database entity from domain model
func NewSchemaToolUse(t *conversation.ToolUse) *ToolUse {
	var args datatypes.JSON
	if t.Args != nil {
		if data, err := json.Marshal(t.Args); err == nil {
			args = data
		}
	}
	return &ToolUse{
		ID:        t.ID,
		MessageID: t.MessageID,
		Name:      t.Name,
		Args:      args,
		State:     string(t.State),
		ToolID:    t.ToolID,
	}
}
