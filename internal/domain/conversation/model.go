package conversation

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser               Role = "user"
	RoleAssistant          Role = "assistant"
	RoleFunctionCall       Role = "function_call"
	RoleFunctionCallResult Role = "function_call_result"
)

// ToolUseState tracks the two-phase tool call lifecycle. Transitions are
// monotonic: pending moves to approved or rejected exactly once.
type ToolUseState string

const (
	ToolUsePending  ToolUseState = "pending"
	ToolUseApproved ToolUseState = "approved"
	ToolUseRejected ToolUseState = "rejected"
)

// IsTerminal reports whether the state admits no further transition.
func (s ToolUseState) IsTerminal() bool {
	return s == ToolUseApproved || s == ToolUseRejected
}

// Conversation is an ordered sequence of messages owned by one user.
type Conversation struct {
	ID        uint
	PublicID  string
	UserID    string
	Title     *string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one immutable entry in a conversation. Sequence is strictly
// increasing within a conversation and defines replay order.
type Message struct {
	ID             uint
	PublicID       string
	ConversationID uint
	Role           Role
	Content        string
	Model          *string
	Provider       *string
	Sequence       int
	ToolUse        *ToolUse
	CreatedAt      time.Time
}

// ToolUse records a proposed tool invocation owned by a function_call message.
// ToolID back-references the stored tool row for user-configured tools; it is
// nil for preconfigured tools, which resolve through a code lookup table.
type ToolUse struct {
	ID        uint
	MessageID uint
	Name      string
	Args      map[string]any
	State     ToolUseState
	ToolID    *uint
}
