package chat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/domain/chat"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/domain/llm"
	"moopoint/chat-api/internal/domain/tooluse"
)

// memRepo is a single-conversation in-memory store.
type memRepo struct {
	conv      *conversation.Conversation
	messages  []conversation.Message
	nextMsgID uint
	title     string
}

func (r *memRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	conv.ID = 1
	conv.PublicID = "conv-new"
	r.conv = conv
	return nil
}

func (r *memRepo) FindByPublicID(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
	if r.conv != nil && r.conv.PublicID == publicID {
		return r.conv, nil
	}
	return nil, errors.New("conversation not found")
}

func (r *memRepo) ListByUser(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	return nil, nil
}

func (r *memRepo) Delete(ctx context.Context, userID, publicID string) error { return nil }

func (r *memRepo) UpdateTitle(ctx context.Context, conversationID uint, title string) error {
	r.title = title
	return nil
}

func (r *memRepo) AppendMessage(ctx context.Context, msg *conversation.Message) error {
	r.nextMsgID++
	msg.ID = r.nextMsgID
	msg.PublicID = fmt.Sprintf("msg-%d", r.nextMsgID)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memRepo) ListMessages(ctx context.Context, conversationID uint) ([]conversation.Message, error) {
	out := make([]conversation.Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

func (r *memRepo) UpdateToolUseState(ctx context.Context, toolUseID uint, state conversation.ToolUseState) error {
	for i := range r.messages {
		if r.messages[i].ToolUse != nil && r.messages[i].ToolUse.ID == toolUseID {
			r.messages[i].ToolUse.State = state
		}
	}
	return nil
}

func (r *memRepo) byRole(role conversation.Role) []conversation.Message {
	var out []conversation.Message
	for _, msg := range r.messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type fakeKeyRepo struct {
	key *apikey.APIKey
}

func (r *fakeKeyRepo) Create(ctx context.Context, key *apikey.APIKey) error { return nil }

func (r *fakeKeyRepo) ListByUser(ctx context.Context, userID string) ([]apikey.APIKey, error) {
	return nil, nil
}

func (r *fakeKeyRepo) FindByPublicID(ctx context.Context, userID, publicID string) (*apikey.APIKey, error) {
	return nil, nil
}

func (r *fakeKeyRepo) FindByProvider(ctx context.Context, userID, provider string) (*apikey.APIKey, error) {
	return r.key, nil
}

func (r *fakeKeyRepo) Delete(ctx context.Context, userID, publicID string) error { return nil }

type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (fakeCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < 4 || ciphertext[:4] != "enc:" {
		return "", errors.New("bad ciphertext")
	}
	return ciphertext[4:], nil
}

type fakeCatalogSource struct {
	entries []catalog.Entry
	calls   int
}

func (f *fakeCatalogSource) Resolve(ctx context.Context, userID string) ([]catalog.Entry, error) {
	f.calls++
	return f.entries, nil
}

type fakeAdapter struct {
	name     string
	streams  []llm.Stream
	errs     []error
	requests []llm.Request
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) StreamCompletion(ctx context.Context, req llm.Request) (llm.Stream, error) {
	i := len(a.requests)
	a.requests = append(a.requests, req)
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	if i < len(a.streams) {
		return a.streams[i], nil
	}
	return &fakeStream{}, nil
}

type fakeDecider struct {
	decisions []tooluse.Decision
	repo      *memRepo
	err       error
}

func (f *fakeDecider) Decide(ctx context.Context, dec tooluse.Decision) (*tooluse.Outcome, error) {
	f.decisions = append(f.decisions, dec)
	if f.err != nil {
		return nil, f.err
	}
	state := conversation.ToolUseRejected
	if dec.Approved {
		state = conversation.ToolUseApproved
	}
	for i := range f.repo.messages {
		if f.repo.messages[i].PublicID == dec.MessageID && f.repo.messages[i].ToolUse != nil {
			f.repo.messages[i].ToolUse.State = state
		}
	}
	result := &conversation.Message{
		ConversationID: 1,
		Role:           conversation.RoleFunctionCallResult,
		Content:        "tool output",
		Sequence:       len(f.repo.messages),
	}
	if err := f.repo.AppendMessage(ctx, result); err != nil {
		return nil, err
	}
	return &tooluse.Outcome{State: state, Result: result}, nil
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnUserMessage(id string) {
	o.events = append(o.events, "user_message:"+id)
}

func (o *recordingObserver) OnConversationCreated(id string) {
	o.events = append(o.events, "conversation_created:"+id)
}

func (o *recordingObserver) OnDelta(delta string) {
	o.events = append(o.events, "delta:"+delta)
}

func (o *recordingObserver) OnMessageDone(msg *conversation.Message) {
	o.events = append(o.events, "message_done:"+msg.Content)
}

func (o *recordingObserver) OnFunctionCall(msg *conversation.Message) {
	o.events = append(o.events, "function_call:"+msg.ToolUse.Name)
}

func (o *recordingObserver) OnTitleUpdated(title string) {
	o.events = append(o.events, "title:"+title)
}

func (o *recordingObserver) OnAuthError(msg string) { o.events = append(o.events, "auth_error") }
func (o *recordingObserver) OnAPIError(msg string)  { o.events = append(o.events, "api_error") }
func (o *recordingObserver) OnDone()                { o.events = append(o.events, "done") }

type serviceFixture struct {
	repo    *memRepo
	keys    *fakeKeyRepo
	source  *fakeCatalogSource
	adapter *fakeAdapter
	decider *fakeDecider
	service *chat.Service
}

func newFixture(adapter *fakeAdapter) *serviceFixture {
	repo := &memRepo{}
	keys := &fakeKeyRepo{}
	source := &fakeCatalogSource{}
	decider := &fakeDecider{repo: repo}
	service := chat.NewService(
		repo, keys, fakeCipher{}, source,
		llm.NewRegistry(adapter), decider, zerolog.Nop(),
	)
	return &serviceFixture{
		repo: repo, keys: keys, source: source,
		adapter: adapter, decider: decider, service: service,
	}
}

func TestService_TextTurnOnNewConversation(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "Hello"}, {Text: " world"}}},
		&fakeStream{chunks: []llm.Chunk{{Text: `"Greeting exchange"`}}},
	}}
	fx := newFixture(adapter)
	observer := &recordingObserver{}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi there",
	}, observer)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"user_message:msg-1",
		"conversation_created:conv-new",
		"delta:Hello",
		"delta: world",
		"message_done:Hello world",
		"title:Greeting exchange",
		"done",
	}, observer.events)

	users := fx.repo.byRole(conversation.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "hi there", users[0].Content)
	assert.Equal(t, 0, users[0].Sequence)

	assistants := fx.repo.byRole(conversation.RoleAssistant)
	require.Len(t, assistants, 1)
	assert.Equal(t, "Hello world", assistants[0].Content)
	assert.Equal(t, 1, assistants[0].Sequence)

	assert.Equal(t, "Greeting exchange", fx.repo.title)
}

func TestService_ToolCallProposal(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{
			{Text: "Checking."},
			{CallStart: true, ToolName: "ab12_u", ArgsDelta: `{"url":"http://x"}`},
		}},
		&fakeStream{chunks: []llm.Chunk{{Text: "Fetch request"}}},
	}}
	fx := newFixture(adapter)
	fx.source.entries = []catalog.Entry{{
		Code:   "ab12_u",
		Origin: catalog.OriginUser,
		Tool: catalog.ToolDescriptor{
			Name: "fetch",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"url": map[string]any{"type": "string"}},
			},
		},
	}}
	observer := &recordingObserver{}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:             "user-1",
		Provider:           "fake",
		Model:              "m1",
		Content:            "fetch http://x",
		ToolCallingEnabled: true,
	}, observer)

	require.NoError(t, err)
	assert.Equal(t, 1, fx.source.calls)

	// The first completion request carries the namespaced catalog.
	require.NotEmpty(t, adapter.requests)
	require.Len(t, adapter.requests[0].Tools, 1)
	assert.Equal(t, "ab12_u", adapter.requests[0].Tools[0].Name)

	calls := fx.repo.byRole(conversation.RoleFunctionCall)
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].ToolUse)
	assert.Equal(t, "ab12_u", calls[0].ToolUse.Name)
	assert.Equal(t, conversation.ToolUsePending, calls[0].ToolUse.State)
	assert.Equal(t, map[string]any{"url": "http://x"}, calls[0].ToolUse.Args)
	assert.JSONEq(t, `{"name":"ab12_u","arguments":{"url":"http://x"}}`, calls[0].Content)

	assert.Contains(t, observer.events, "function_call:ab12_u")
	assert.Equal(t, "done", observer.events[len(observer.events)-1])
}

func TestService_ToolCallingDisabledSkipsCatalog(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "ok"}}},
		&fakeStream{chunks: []llm.Chunk{{Text: "Title"}}},
	}}
	fx := newFixture(adapter)
	fx.source.entries = []catalog.Entry{{Code: "ab12_u"}}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi",
	}, &recordingObserver{})

	require.NoError(t, err)
	assert.Zero(t, fx.source.calls)
	assert.Empty(t, adapter.requests[0].Tools)
}

func TestService_AuthErrorBeforeStreaming(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", errs: []error{
		fmt.Errorf("%w: bad key", llm.ErrAuth),
	}}
	fx := newFixture(adapter)
	observer := &recordingObserver{}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi",
	}, observer)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"user_message:msg-1",
		"conversation_created:conv-new",
		"auth_error",
		"done",
	}, observer.events)
	assert.Empty(t, fx.repo.byRole(conversation.RoleAssistant))
}

func TestService_AuthErrorMidStreamKeepsProposals(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{
			chunks: []llm.Chunk{
				{Text: "partial"},
				{CallStart: true, ToolName: "ab12_u", ArgsDelta: `{}`},
			},
			finalErr: fmt.Errorf("%w: expired", llm.ErrAuth),
		},
	}}
	fx := newFixture(adapter)
	observer := &recordingObserver{}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi",
	}, observer)

	require.NoError(t, err)
	assert.NotContains(t, observer.events, "message_done:partial")
	assert.Contains(t, observer.events, "auth_error")
	assert.Contains(t, observer.events, "function_call:ab12_u")
	assert.Equal(t, "done", observer.events[len(observer.events)-1])

	// Partial text is dropped, the completed proposal is kept.
	assert.Empty(t, fx.repo.byRole(conversation.RoleAssistant))
	assert.Len(t, fx.repo.byRole(conversation.RoleFunctionCall), 1)
	// A failed turn never gets a title.
	assert.Len(t, adapter.requests, 1)
	assert.Empty(t, fx.repo.title)
}

func TestService_MalformedToolArgumentsAbortTurn(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{
			{CallStart: true, ToolName: "broken_u", ArgsDelta: `{"a":`},
		}},
	}}
	fx := newFixture(adapter)
	observer := &recordingObserver{}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi",
	}, observer)

	require.NoError(t, err)
	assert.Contains(t, observer.events, "api_error")
	assert.Equal(t, "done", observer.events[len(observer.events)-1])
	assert.Empty(t, fx.repo.byRole(conversation.RoleFunctionCall))
}

func TestService_DecisionTurn(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "The page says hello."}}},
	}}
	fx := newFixture(adapter)
	fx.repo.conv = &conversation.Conversation{ID: 1, PublicID: "conv-1", UserID: "user-1"}
	fx.repo.messages = []conversation.Message{
		{ID: 1, PublicID: "msg-1", ConversationID: 1, Role: conversation.RoleUser, Content: "fetch http://x", Sequence: 0},
		{
			ID: 2, PublicID: "msg-2", ConversationID: 1,
			Role: conversation.RoleFunctionCall, Sequence: 1,
			Content: `{"name":"ab12_u","arguments":{"url":"http://x"}}`,
			ToolUse: &conversation.ToolUse{
				ID: 9, Name: "ab12_u",
				Args:  map[string]any{"url": "http://x"},
				State: conversation.ToolUsePending,
			},
		},
	}
	fx.repo.nextMsgID = 2
	observer := &recordingObserver{}

	approve := true
	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Provider:       "fake",
		Model:          "m1",
		ToolDecision:   &approve,
	}, observer)

	require.NoError(t, err)

	require.Len(t, fx.decider.decisions, 1)
	assert.Equal(t, "msg-2", fx.decider.decisions[0].MessageID)
	assert.True(t, fx.decider.decisions[0].Approved)

	// No new user message on a decision turn.
	assert.NotContains(t, observer.events[0], "user_message")
	assert.Equal(t, []string{
		"delta:The page says hello.",
		"message_done:The page says hello.",
		"done",
	}, observer.events)

	// The completion saw the folded-in tool result.
	require.Len(t, adapter.requests, 1)
	history := adapter.requests[0].Messages
	require.Len(t, history, 3)
	assert.Contains(t, history[2].Content, "<tool_call_response>")
	assert.Contains(t, history[2].Content, "tool output")
}

func TestService_DecisionWithoutPendingCallFallsBackToUserMessage(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "ok"}}},
	}}
	fx := newFixture(adapter)
	fx.repo.conv = &conversation.Conversation{ID: 1, PublicID: "conv-1", UserID: "user-1"}
	fx.repo.messages = []conversation.Message{
		{ID: 1, PublicID: "msg-1", ConversationID: 1, Role: conversation.RoleUser, Content: "hi", Sequence: 0},
		{ID: 2, PublicID: "msg-2", ConversationID: 1, Role: conversation.RoleAssistant, Content: "hello", Sequence: 1},
	}
	fx.repo.nextMsgID = 2
	observer := &recordingObserver{}

	approve := true
	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Provider:       "fake",
		Model:          "m1",
		Content:        "thanks",
		ToolDecision:   &approve,
	}, observer)

	require.NoError(t, err)
	assert.Empty(t, fx.decider.decisions)
	assert.Equal(t, "user_message:msg-3", observer.events[0])
}

func TestService_DecisionOnStaleToolSkips(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "moving on"}}},
	}}
	fx := newFixture(adapter)
	fx.decider.err = fmt.Errorf("%w: gone", catalog.ErrToolNotResolved)
	fx.repo.conv = &conversation.Conversation{ID: 1, PublicID: "conv-1", UserID: "user-1"}
	fx.repo.messages = []conversation.Message{
		{
			ID: 1, PublicID: "msg-1", ConversationID: 1,
			Role: conversation.RoleFunctionCall, Sequence: 0,
			ToolUse: &conversation.ToolUse{ID: 3, Name: "gone_u", State: conversation.ToolUsePending},
		},
	}
	fx.repo.nextMsgID = 1
	observer := &recordingObserver{}

	approve := true
	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:         "user-1",
		ConversationID: "conv-1",
		Provider:       "fake",
		Model:          "m1",
		ToolDecision:   &approve,
	}, observer)

	require.NoError(t, err)
	assert.Equal(t, "done", observer.events[len(observer.events)-1])
}

func TestService_UnknownProvider(t *testing.T) {
	fx := newFixture(&fakeAdapter{name: "fake"})

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "nope",
		Model:    "m1",
		Content:  "hi",
	}, &recordingObserver{})

	assert.Error(t, err)
}

func TestService_CredentialFallsBackToStoredKey(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "ok"}}},
		&fakeStream{chunks: []llm.Chunk{{Text: "Title"}}},
	}}
	fx := newFixture(adapter)
	fx.keys.key = &apikey.APIKey{Provider: "fake", KeyCiphertext: "enc:sk-stored"}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:   "user-1",
		Provider: "fake",
		Model:    "m1",
		Content:  "hi",
	}, &recordingObserver{})

	require.NoError(t, err)
	assert.Equal(t, "sk-stored", adapter.requests[0].Credential)
}

func TestService_ExplicitCredentialWins(t *testing.T) {
	adapter := &fakeAdapter{name: "fake", streams: []llm.Stream{
		&fakeStream{chunks: []llm.Chunk{{Text: "ok"}}},
		&fakeStream{chunks: []llm.Chunk{{Text: "Title"}}},
	}}
	fx := newFixture(adapter)
	fx.keys.key = &apikey.APIKey{Provider: "fake", KeyCiphertext: "enc:sk-stored"}

	err := fx.service.RunTurn(context.Background(), chat.TurnParams{
		UserID:     "user-1",
		Provider:   "fake",
		Model:      "m1",
		Content:    "hi",
		Credential: "sk-inline",
	}, &recordingObserver{})

	require.NoError(t, err)
	assert.Equal(t, "sk-inline", adapter.requests[0].Credential)
}
