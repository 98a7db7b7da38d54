package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/infrastructure/auth"
)

// ConversationHandler serves conversation listing, retrieval and deletion.
type ConversationHandler struct {
	conversations conversation.Repository
	log           zerolog.Logger
}

// NewConversationHandler builds the conversation handler.
func NewConversationHandler(conversations conversation.Repository, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, log: log}
}

// List returns the caller's conversations, newest first.
func (h *ConversationHandler) List(c *gin.Context) {
	items, err := h.conversations.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]ConversationDTO, len(items))
	for i := range items {
		dtos[i] = conversationToDTO(&items[i], false)
	}
	c.JSON(http.StatusOK, gin.H{"data": dtos})
}

// Get returns one conversation with its full message history.
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.conversations.FindByPublicID(
		c.Request.Context(), auth.UserID(c), c.Param("conversation_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversationToDTO(conv, true))
}

// Delete removes one conversation and its messages.
func (h *ConversationHandler) Delete(c *gin.Context) {
	err := h.conversations.Delete(
		c.Request.Context(), auth.UserID(c), c.Param("conversation_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
