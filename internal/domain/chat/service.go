package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/domain/llm"
	"moopoint/chat-api/internal/domain/tooluse"
	"moopoint/chat-api/internal/utils/platformerrors"
)

const titlePrompt = "Generate a short, concise title (under 10 words) for a conversation that starts with the following message: %s"

// CatalogSource provides the merged tool catalog for one user.
type CatalogSource interface {
	Resolve(ctx context.Context, userID string) ([]catalog.Entry, error)
}

// TurnObserver receives the ordered event sequence of one completion turn.
// Implementations translate these calls into a transport, typically SSE.
type TurnObserver interface {
	OnUserMessage(messageID string)
	OnConversationCreated(conversationID string)
	OnDelta(delta string)
	OnMessageDone(message *conversation.Message)
	OnFunctionCall(message *conversation.Message)
	OnTitleUpdated(title string)
	OnAuthError(message string)
	OnAPIError(message string)
	OnDone()
}

// ToolDecider applies an approve/reject decision to a pending tool call.
type ToolDecider interface {
	Decide(ctx context.Context, dec tooluse.Decision) (*tooluse.Outcome, error)
}

// TurnParams describes one user turn. An empty ConversationID starts a new
// conversation. A non-nil ToolDecision resolves the conversation's pending
// tool call instead of adding a new user message.
type TurnParams struct {
	UserID             string
	ConversationID     string
	Provider           string
	Model              string
	Content            string
	Credential         string
	ToolCallingEnabled bool
	ToolDecision       *bool
}

// Service runs completion turns: it persists the user message, streams the
// model's reply through the reconstruction layer, persists what came back and
// reports every step to the observer in a fixed order.
type Service struct {
	conversations conversation.Repository
	apikeys       apikey.Repository
	cipher        apikey.Cipher
	catalog       CatalogSource
	providers     *llm.Registry
	decider       ToolDecider
	log           zerolog.Logger
}

// NewService constructs the chat turn service.
func NewService(
	conversations conversation.Repository,
	apikeys apikey.Repository,
	cipher apikey.Cipher,
	catalogSource CatalogSource,
	providers *llm.Registry,
	decider ToolDecider,
	log zerolog.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		apikeys:       apikeys,
		cipher:        cipher,
		catalog:       catalogSource,
		providers:     providers,
		decider:       decider,
		log:           log.With().Str("component", "chat").Logger(),
	}
}

// RunTurn executes one turn end to end. Errors before the stream opens are
// returned to the caller; once streaming has started, failures surface as
// terminal observer events and RunTurn returns nil. Persistence uses a
// context detached from the request so a client disconnect mid-stream never
// loses already-produced messages.
func (s *Service) RunTurn(ctx context.Context, params TurnParams, observer TurnObserver) error {
	adapter, err := s.providers.Get(params.Provider)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported provider %q", params.Provider),
			err,
			"3f1a8b2e-9c47-4d05-a6e3-0b5d7c28f914",
		)
	}

	persistCtx := context.WithoutCancel(ctx)

	conv, created, err := s.loadOrCreate(persistCtx, params)
	if err != nil {
		return err
	}

	history, err := s.conversations.ListMessages(persistCtx, conv.ID)
	if err != nil {
		return err
	}

	if params.ToolDecision != nil && hasPendingToolCall(history) {
		history, err = s.applyDecision(persistCtx, conv, params, history)
		if err != nil {
			return err
		}
	} else {
		userMsg := &conversation.Message{
			ConversationID: conv.ID,
			Role:           conversation.RoleUser,
			Content:        params.Content,
			Model:          &params.Model,
			Provider:       &params.Provider,
			Sequence:       nextSeq(history),
		}
		if err := s.conversations.AppendMessage(persistCtx, userMsg); err != nil {
			return err
		}
		history = append(history, *userMsg)
		observer.OnUserMessage(userMsg.PublicID)
	}

	if created {
		observer.OnConversationCreated(conv.PublicID)
	}

	// An empty catalog disables function calling for the whole call.
	var entries []catalog.Entry
	if params.ToolCallingEnabled {
		entries, err = s.catalog.Resolve(ctx, params.UserID)
		if err != nil {
			return err
		}
	}

	credential := params.Credential
	if credential == "" {
		credential, err = s.resolveCredential(ctx, params.UserID, params.Provider)
		if err != nil {
			return err
		}
	}

	stream, err := adapter.StreamCompletion(ctx, llm.Request{
		Model:      params.Model,
		Credential: credential,
		Messages:   FlattenHistory(history),
		Tools:      toolSpecs(entries),
	})
	if err != nil {
		if errors.Is(err, llm.ErrAuth) {
			observer.OnAuthError(err.Error())
			observer.OnDone()
			return nil
		}
		return err
	}

	outcome := s.consumeStream(stream, entries, observer)

	s.persistTurn(persistCtx, conv, params, history, outcome, observer)

	if created && !outcome.failed && (outcome.assistantText != "" || len(outcome.proposals) > 0) {
		s.generateTitle(persistCtx, adapter, credential, params, conv, observer)
	}

	observer.OnDone()
	return nil
}

// turnOutcome is what one completion stream produced.
type turnOutcome struct {
	assistantText string
	proposals     []ToolCallProposal
	failed        bool
}

// consumeStream drains the reconstructed event sequence, forwarding text
// deltas immediately and collecting proposals for persistence after the
// stream ends. Terminal events mark the outcome failed; proposals buffered
// before the failure are kept.
func (s *Service) consumeStream(stream llm.Stream, entries []catalog.Entry, observer TurnObserver) turnOutcome {
	rec := NewReconstructor(stream)
	defer rec.Close()

	var out turnOutcome
	var text strings.Builder

	for {
		event, err := rec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var recErr *ReconstructionError
			if errors.As(err, &recErr) {
				s.log.Warn().Str("tool", recErr.ToolName).Err(recErr.Err).
					Msg("malformed tool call arguments, aborting stream")
			} else {
				s.log.Error().Err(err).Msg("completion stream failed")
			}
			observer.OnAPIError(err.Error())
			out.failed = true
			break
		}

		switch event.Kind {
		case EventText:
			text.WriteString(event.Delta)
			observer.OnDelta(event.Delta)
		case EventToolCall:
			s.checkProposal(entries, event.Call)
			out.proposals = append(out.proposals, *event.Call)
		case EventAuthError:
			observer.OnAuthError(event.Message)
			out.failed = true
		case EventAPIError:
			observer.OnAPIError(event.Message)
			out.failed = true
		}
	}

	out.assistantText = text.String()
	return out
}

// persistTurn writes the assistant message and the proposal rows. On a failed
// stream the partial assistant text is dropped and no message_done is
// emitted, but completed proposals still become pending tool uses.
func (s *Service) persistTurn(
	ctx context.Context,
	conv *conversation.Conversation,
	params TurnParams,
	history []conversation.Message,
	outcome turnOutcome,
	observer TurnObserver,
) {
	seq := nextSeq(history)

	if !outcome.failed && outcome.assistantText != "" {
		msg := &conversation.Message{
			ConversationID: conv.ID,
			Role:           conversation.RoleAssistant,
			Content:        outcome.assistantText,
			Model:          &params.Model,
			Provider:       &params.Provider,
			Sequence:       seq,
		}
		if err := s.conversations.AppendMessage(ctx, msg); err != nil {
			s.log.Error().Err(err).Msg("persist assistant message")
			observer.OnAPIError("failed to persist assistant message")
			return
		}
		seq++
		observer.OnMessageDone(msg)
	}

	for i := range outcome.proposals {
		proposal := outcome.proposals[i]
		content, err := encodeProposal(proposal)
		if err != nil {
			s.log.Error().Err(err).Str("tool", proposal.Name).Msg("encode tool call proposal")
			continue
		}
		msg := &conversation.Message{
			ConversationID: conv.ID,
			Role:           conversation.RoleFunctionCall,
			Content:        content,
			Model:          &params.Model,
			Provider:       &params.Provider,
			Sequence:       seq,
			ToolUse: &conversation.ToolUse{
				Name:  proposal.Name,
				Args:  proposal.Arguments,
				State: conversation.ToolUsePending,
			},
		}
		if err := s.conversations.AppendMessage(ctx, msg); err != nil {
			s.log.Error().Err(err).Str("tool", proposal.Name).Msg("persist tool call proposal")
			continue
		}
		seq++
		observer.OnFunctionCall(msg)
	}
}

// checkProposal validates proposed arguments against the catalog entry's
// schema. A mismatch is logged and the proposal proceeds unchanged.
func (s *Service) checkProposal(entries []catalog.Entry, call *ToolCallProposal) {
	for _, entry := range entries {
		if entry.Code != call.Name {
			continue
		}
		if err := catalog.ValidateArgs(entry.Tool.InputSchema, call.Arguments); err != nil {
			s.log.Warn().Str("tool", call.Name).Err(err).Msg("proposed arguments fail schema check")
		}
		return
	}
	s.log.Warn().Str("tool", call.Name).Msg("proposal references a tool not in the catalog")
}

// generateTitle asks the same backend for a conversation title. Title
// generation is best effort; every failure is logged and swallowed.
func (s *Service) generateTitle(
	ctx context.Context,
	adapter llm.Adapter,
	credential string,
	params TurnParams,
	conv *conversation.Conversation,
	observer TurnObserver,
) {
	stream, err := adapter.StreamCompletion(ctx, llm.Request{
		Model:      params.Model,
		Credential: credential,
		Messages: []llm.Turn{{
			Role:    llm.TurnRoleUser,
			Content: fmt.Sprintf(titlePrompt, params.Content),
		}},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("title generation failed")
		return
	}
	defer stream.Close()

	var title strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn().Err(err).Msg("title generation failed")
				return
			}
			break
		}
		title.WriteString(chunk.Text)
	}

	cleaned := strings.Trim(strings.TrimSpace(title.String()), `"`)
	if cleaned == "" {
		return
	}
	if err := s.conversations.UpdateTitle(ctx, conv.ID, cleaned); err != nil {
		s.log.Warn().Err(err).Msg("title update failed")
		return
	}
	observer.OnTitleUpdated(cleaned)
}

// applyDecision resolves the conversation's pending tool call and returns the
// refreshed history including the persisted result row. A proposal whose code
// no longer resolves is skipped and logged; the turn proceeds on the existing
// history.
func (s *Service) applyDecision(
	ctx context.Context,
	conv *conversation.Conversation,
	params TurnParams,
	history []conversation.Message,
) ([]conversation.Message, error) {
	pending := lastPendingToolCall(history)

	outcome, err := s.decider.Decide(ctx, tooluse.Decision{
		UserID:         params.UserID,
		ConversationID: conv.PublicID,
		MessageID:      pending.PublicID,
		Approved:       *params.ToolDecision,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrToolNotResolved) {
			s.log.Warn().Str("tool", pending.ToolUse.Name).
				Msg("proposed tool no longer resolves, skipping")
			return history, nil
		}
		return nil, err
	}

	s.log.Info().Str("state", string(outcome.State)).Msg("pending tool call resolved")
	return s.conversations.ListMessages(ctx, conv.ID)
}

func hasPendingToolCall(history []conversation.Message) bool {
	return lastPendingToolCall(history) != nil
}

// lastPendingToolCall returns the trailing function_call message awaiting a
// decision, or nil when the conversation has none.
func lastPendingToolCall(history []conversation.Message) *conversation.Message {
	if len(history) == 0 {
		return nil
	}
	last := &history[len(history)-1]
	if last.Role != conversation.RoleFunctionCall || last.ToolUse == nil {
		return nil
	}
	if last.ToolUse.State != conversation.ToolUsePending {
		return nil
	}
	return last
}

func (s *Service) loadOrCreate(ctx context.Context, params TurnParams) (*conversation.Conversation, bool, error) {
	if params.ConversationID != "" {
		conv, err := s.conversations.FindByPublicID(ctx, params.UserID, params.ConversationID)
		if err != nil {
			return nil, false, err
		}
		return conv, false, nil
	}

	conv := &conversation.Conversation{UserID: params.UserID}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// resolveCredential decrypts the user's stored key for the provider. A
// missing key yields an empty credential; backends that require one reject
// the request and the rejection surfaces as an auth error event.
func (s *Service) resolveCredential(ctx context.Context, userID, provider string) (string, error) {
	key, err := s.apikeys.FindByProvider(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", nil
	}
	plaintext, err := s.cipher.Decrypt(key.KeyCiphertext)
	if err != nil {
		return "", platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeInternal,
			fmt.Sprintf("decrypt credential for provider %s", provider),
			err,
			"b7d2e941-6a0c-4f38-92d5-c4e8a1f63b07",
		)
	}
	return plaintext, nil
}

func toolSpecs(entries []catalog.Entry) []llm.ToolSpec {
	if len(entries) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, 0, len(entries))
	for _, entry := range entries {
		specs = append(specs, llm.ToolSpec{
			Name:        entry.Code,
			Description: entry.Tool.Description,
			Parameters:  entry.Tool.InputSchema,
		})
	}
	return specs
}

func encodeProposal(p ToolCallProposal) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nextSeq(messages []conversation.Message) int {
	next := 0
	for _, msg := range messages {
		if msg.Sequence >= next {
			next = msg.Sequence + 1
		}
	}
	return next
}
