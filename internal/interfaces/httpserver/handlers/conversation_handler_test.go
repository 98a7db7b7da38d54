package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/infrastructure/auth"
	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// MockConversationRepo implements conversation.Repository with overridable
// functions for the methods the handler exercises.
type MockConversationRepo struct {
	ListByUserFunc     func(ctx context.Context, userID string) ([]conversation.Conversation, error)
	FindByPublicIDFunc func(ctx context.Context, userID, publicID string) (*conversation.Conversation, error)
	DeleteFunc         func(ctx context.Context, userID, publicID string) error
}

func (m *MockConversationRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	return nil
}

func (m *MockConversationRepo) FindByPublicID(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
	if m.FindByPublicIDFunc != nil {
		return m.FindByPublicIDFunc(ctx, userID, publicID)
	}
	return nil, nil
}

func (m *MockConversationRepo) ListByUser(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockConversationRepo) Delete(ctx context.Context, userID, publicID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, publicID)
	}
	return nil
}

func (m *MockConversationRepo) UpdateTitle(ctx context.Context, conversationID uint, title string) error {
	return nil
}

func (m *MockConversationRepo) AppendMessage(ctx context.Context, msg *conversation.Message) error {
	return nil
}

func (m *MockConversationRepo) ListMessages(ctx context.Context, conversationID uint) ([]conversation.Message, error) {
	return nil, nil
}

func (m *MockConversationRepo) UpdateToolUseState(ctx context.Context, toolUseID uint, state conversation.ToolUseState) error {
	return nil
}

func setupConversationRouter(repo conversation.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewConversationHandler(repo, zerolog.Nop())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(auth.UserIDKey, "user-1")
	})
	engine.GET("/v1/conversations", handler.List)
	engine.GET("/v1/conversations/:conversation_id", handler.Get)
	engine.DELETE("/v1/conversations/:conversation_id", handler.Delete)
	return engine
}

func TestConversationHandler_List(t *testing.T) {
	title := "Weather chat"
	repo := &MockConversationRepo{
		ListByUserFunc: func(ctx context.Context, userID string) ([]conversation.Conversation, error) {
			assert.Equal(t, "user-1", userID)
			return []conversation.Conversation{
				{PublicID: "conv-1", Title: &title},
				{PublicID: "conv-2"},
			}, nil
		},
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	setupConversationRouter(repo).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Data []handlers.ConversationDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "conv-1", body.Data[0].ID)
	require.NotNil(t, body.Data[0].Title)
	assert.Equal(t, "Weather chat", *body.Data[0].Title)
	assert.Empty(t, body.Data[0].Messages)
}

func TestConversationHandler_GetIncludesMessages(t *testing.T) {
	repo := &MockConversationRepo{
		FindByPublicIDFunc: func(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
			assert.Equal(t, "conv-1", publicID)
			return &conversation.Conversation{
				PublicID: "conv-1",
				Messages: []conversation.Message{
					{PublicID: "msg-1", Role: conversation.RoleUser, Content: "hi", Sequence: 0},
					{
						PublicID: "msg-2", Role: conversation.RoleFunctionCall, Sequence: 1,
						ToolUse: &conversation.ToolUse{
							Name:  "ab12_u",
							Args:  map[string]any{"url": "http://x"},
							State: conversation.ToolUsePending,
						},
					},
				},
			}, nil
		},
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1", nil)
	setupConversationRouter(repo).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body handlers.ConversationDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "user", body.Messages[0].Role)
	require.NotNil(t, body.Messages[1].ToolUse)
	assert.Equal(t, "ab12_u", body.Messages[1].ToolUse.Name)
	assert.Equal(t, "pending", body.Messages[1].ToolUse.State)
}

func TestConversationHandler_GetNotFound(t *testing.T) {
	repo := &MockConversationRepo{
		FindByPublicIDFunc: func(ctx context.Context, userID, publicID string) (*conversation.Conversation, error) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"conversation not found",
				nil,
				"2c1f7e68-4b0d-49a3-8e52-d6a9c01f3b74",
			)
		},
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/conversations/missing", nil)
	setupConversationRouter(repo).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestConversationHandler_Delete(t *testing.T) {
	deleted := ""
	repo := &MockConversationRepo{
		DeleteFunc: func(ctx context.Context, userID, publicID string) error {
			deleted = publicID
			return nil
		},
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodDelete, "/v1/conversations/conv-1", nil)
	setupConversationRouter(repo).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "conv-1", deleted)
	assert.JSONEq(t, `{"deleted":true}`, recorder.Body.String())
}
