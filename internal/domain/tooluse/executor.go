package tooluse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// ErrAlreadyDecided is returned when a decision arrives for a tool use that
// already left the pending state. The first decision wins; replays are
// conflicts, not no-ops.
var ErrAlreadyDecided = errors.New("tool use already decided")

// Dispatcher routes a namespaced tool code back to its invocation target.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, code string) (*catalog.Target, error)
}

// Decision is one approve/reject request for a pending tool use.
type Decision struct {
	UserID         string
	ConversationID string
	MessageID      string
	Approved       bool
}

// Outcome reports what a decision produced. Result is the persisted
// function_call_result message; it is set for both approvals and rejections.
type Outcome struct {
	State  conversation.ToolUseState
	Result *conversation.Message
}

// Executor applies tool use decisions: it transitions the stored state, runs
// the remote call when approved, and appends the result row that the next
// completion turn replays as history.
type Executor struct {
	conversations conversation.Repository
	dispatcher    Dispatcher
	client        catalog.ToolServerClient
	callTimeout   time.Duration
	log           zerolog.Logger
}

// NewExecutor constructs a tool use executor.
func NewExecutor(
	conversations conversation.Repository,
	dispatcher Dispatcher,
	client catalog.ToolServerClient,
	callTimeout time.Duration,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		conversations: conversations,
		dispatcher:    dispatcher,
		client:        client,
		callTimeout:   callTimeout,
		log:           log.With().Str("component", "tooluse").Logger(),
	}
}

// Decide moves a pending tool use to approved or rejected. Approval triggers
// exactly one invocation of the underlying tool; rejection invokes nothing and
// records an empty result so the model sees the call was declined. A decision
// on a non-pending tool use fails with ErrAlreadyDecided and has no side
// effects.
func (e *Executor) Decide(ctx context.Context, dec Decision) (*Outcome, error) {
	conv, err := e.conversations.FindByPublicID(ctx, dec.UserID, dec.ConversationID)
	if err != nil {
		return nil, err
	}

	messages, err := e.conversations.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	var call *conversation.Message
	for i := range messages {
		if messages[i].PublicID == dec.MessageID && messages[i].Role == conversation.RoleFunctionCall {
			call = &messages[i]
			break
		}
	}
	if call == nil || call.ToolUse == nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("no pending tool call %s in conversation %s", dec.MessageID, dec.ConversationID),
			nil,
			"f2b8c5d1-7a3e-4c90-b6f4-d81e29a70c53",
		)
	}

	if call.ToolUse.State.IsTerminal() {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeConflict,
			fmt.Sprintf("tool call %s is already %s", dec.MessageID, call.ToolUse.State),
			ErrAlreadyDecided,
			"0d4a9e62-31cf-4b75-a8d0-6e5b2c9f4a17",
		)
	}

	state := conversation.ToolUseRejected
	resultText := ""
	if dec.Approved {
		state = conversation.ToolUseApproved
		resultText, err = e.invoke(ctx, dec.UserID, call.ToolUse)
		if err != nil {
			return nil, err
		}
	}

	if err := e.conversations.UpdateToolUseState(ctx, call.ToolUse.ID, state); err != nil {
		return nil, err
	}

	result := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleFunctionCallResult,
		Content:        resultText,
		Sequence:       nextSequence(messages),
	}
	if err := e.conversations.AppendMessage(ctx, result); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("conversation_id", dec.ConversationID).
		Str("tool", call.ToolUse.Name).
		Str("state", string(state)).
		Msg("tool use decided")

	return &Outcome{State: state, Result: result}, nil
}

// invoke runs the approved call against its origin server. A dispatch miss or
// an unreachable server aborts the decision before any state is written, so a
// retry after fixing the server configuration starts from pending again.
func (e *Executor) invoke(ctx context.Context, userID string, use *conversation.ToolUse) (string, error) {
	target, err := e.dispatcher.Dispatch(ctx, userID, use.Name)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	items, err := e.client.CallTool(callCtx, target.URL, target.ToolName, use.Args)
	if err != nil {
		return "", platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal,
			fmt.Sprintf("invoke tool %s", use.Name),
			fmt.Errorf("%w: %w", catalog.ErrServerUnreachable, err),
			"9e6f3a28-c40b-47d1-95e2-7b8a1d6c0f34",
		)
	}

	return flattenContent(items), nil
}

// flattenContent joins the text items of a tool response. Non-text items carry
// no portable representation and are dropped.
func flattenContent(items []catalog.ContentItem) string {
	var parts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func nextSequence(messages []conversation.Message) int {
	next := 0
	for _, msg := range messages {
		if msg.Sequence >= next {
			next = msg.Sequence + 1
		}
	}
	return next
}
