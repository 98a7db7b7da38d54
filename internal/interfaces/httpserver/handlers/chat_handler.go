package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/chat"
	"moopoint/chat-api/internal/domain/conversation"
	"moopoint/chat-api/internal/infrastructure/auth"
	"moopoint/chat-api/internal/infrastructure/metrics"
)

// ChatHandler exposes the streaming completion turn.
type ChatHandler struct {
	service *chat.Service
	log     zerolog.Logger
}

// NewChatHandler builds the chat handler.
func NewChatHandler(service *chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{service: service, log: log}
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	ConversationID     string `json:"conversation_id"`
	Message            string `json:"message"`
	Provider           string `json:"provider" binding:"required"`
	Model              string `json:"model" binding:"required"`
	Credential         string `json:"credential"`
	ToolCallingEnabled bool   `json:"tool_calling_enabled"`
	ToolDecision       *bool  `json:"tool_decision"`
}

// Create runs one completion turn as a server-sent event stream.
func (h *ChatHandler) Create(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	if req.Message == "" && req.ToolDecision == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "message is required"}})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "streaming not supported"}})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	observer := newSSEObserver(c.Writer, flusher, h.log)

	params := chat.TurnParams{
		UserID:             auth.UserID(c),
		ConversationID:     req.ConversationID,
		Provider:           req.Provider,
		Model:              req.Model,
		Content:            req.Message,
		Credential:         req.Credential,
		ToolCallingEnabled: req.ToolCallingEnabled,
		ToolDecision:       req.ToolDecision,
	}

	status := "ok"
	if err := h.service.RunTurn(c.Request.Context(), params, observer); err != nil {
		status = "error"
		h.log.Error().Err(err).Msg("turn failed before streaming")
		observer.sendEvent("api_error", err.Error())
		observer.OnDone()
	}
	metrics.TurnsTotal.WithLabelValues(req.Provider, status).Inc()
}

// sseObserver translates turn events into named SSE frames. Event order on the
// wire follows call order exactly; the mutex only guards against interleaved
// writes.
type sseObserver struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	log     zerolog.Logger
	mu      sync.Mutex
}

func newSSEObserver(w http.ResponseWriter, flusher http.Flusher, log zerolog.Logger) *sseObserver {
	return &sseObserver{
		writer:  w,
		flusher: flusher,
		log:     log,
	}
}

func (o *sseObserver) OnUserMessage(messageID string) {
	o.sendEvent("user_message_id", messageID)
}

func (o *sseObserver) OnConversationCreated(conversationID string) {
	o.sendEvent("conversation_created", conversationID)
}

func (o *sseObserver) OnDelta(delta string) {
	o.sendEvent("message", delta)
}

func (o *sseObserver) OnMessageDone(message *conversation.Message) {
	o.sendEvent("message_done", messageToDTO(message))
}

func (o *sseObserver) OnFunctionCall(message *conversation.Message) {
	o.sendEvent("function_call", messageToDTO(message))
}

func (o *sseObserver) OnTitleUpdated(title string) {
	o.sendEvent("conversation_title_updated", title)
}

func (o *sseObserver) OnAuthError(message string) {
	o.sendEvent("auth_error", message)
}

func (o *sseObserver) OnAPIError(message string) {
	o.sendEvent("api_error", message)
}

func (o *sseObserver) OnDone() {
	o.sendEvent("done", "{}")
}

// sendEvent writes one SSE frame. String payloads go out raw; everything else
// is JSON-encoded.
func (o *sseObserver) sendEvent(name string, payload any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var data []byte
	switch typed := payload.(type) {
	case string:
		data = []byte(typed)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			o.log.Error().Err(err).Msg("marshal SSE payload")
			return
		}
		data = encoded
	}

	fmt.Fprintf(o.writer, "event: %s\n", name)
	fmt.Fprintf(o.writer, "data: %s\n\n", data)
	o.flusher.Flush()
	metrics.StreamEventsTotal.WithLabelValues(name).Inc()
}
