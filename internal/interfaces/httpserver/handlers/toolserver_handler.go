package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/infrastructure/auth"
	"moopoint/chat-api/internal/infrastructure/metrics"
)

// ToolServerHandler manages user tool servers and the built-in server
// toggles. Creating or updating a server refreshes its cached tool list from
// the live endpoint.
type ToolServerHandler struct {
	resolver      *catalog.Resolver
	servers       catalog.ServerRepository
	preconfigured catalog.PreconfiguredRepository
	log           zerolog.Logger
}

// NewToolServerHandler builds the tool server handler.
func NewToolServerHandler(
	resolver *catalog.Resolver,
	servers catalog.ServerRepository,
	preconfigured catalog.PreconfiguredRepository,
	log zerolog.Logger,
) *ToolServerHandler {
	return &ToolServerHandler{
		resolver:      resolver,
		servers:       servers,
		preconfigured: preconfigured,
		log:           log,
	}
}

// ToolServerDTO is the wire form of a configured server with cached tools.
type ToolServerDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Tools     []ToolDTO `json:"tools"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolDTO is one cached tool row.
type ToolDTO struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// PreconfiguredServerDTO is the per-user state of one built-in server.
type PreconfiguredServerDTO struct {
	Code    string    `json:"code"`
	Enabled bool      `json:"enabled"`
	Tools   []ToolDTO `json:"tools"`
}

type upsertToolServerRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
}

// Create registers a server and caches its advertised tools. An unreachable
// endpoint fails the whole operation; no half-configured server is left
// behind.
func (h *ToolServerHandler) Create(c *gin.Context) {
	var req upsertToolServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	server := &catalog.ToolServer{
		UserID: auth.UserID(c),
		Name:   req.Name,
		URL:    req.URL,
	}
	if err := h.servers.Create(c.Request.Context(), server); err != nil {
		respondError(c, err)
		return
	}

	if err := h.resolver.RefreshServer(c.Request.Context(), server); err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues("user", "error").Inc()
		// Roll the registration back so a dead URL is not stored.
		if delErr := h.servers.Delete(c.Request.Context(), server.UserID, server.PublicID); delErr != nil {
			h.log.Error().Err(delErr).Msg("rollback of unreachable tool server failed")
		}
		respondError(c, err)
		return
	}
	metrics.CatalogRefreshTotal.WithLabelValues("user", "ok").Inc()

	created, err := h.servers.FindByPublicID(c.Request.Context(), server.UserID, server.PublicID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toToolServerDTO(created))
}

// List returns the caller's configured servers.
func (h *ToolServerHandler) List(c *gin.Context) {
	servers, err := h.servers.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]ToolServerDTO, len(servers))
	for i := range servers {
		dtos[i] = toToolServerDTO(&servers[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": dtos})
}

// Get returns one configured server.
func (h *ToolServerHandler) Get(c *gin.Context) {
	server, err := h.servers.FindByPublicID(
		c.Request.Context(), auth.UserID(c), c.Param("server_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toToolServerDTO(server))
}

// Update changes name/URL and refreshes the cached tool list.
func (h *ToolServerHandler) Update(c *gin.Context) {
	var req upsertToolServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	server, err := h.servers.FindByPublicID(
		c.Request.Context(), auth.UserID(c), c.Param("server_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	server.Name = req.Name
	server.URL = req.URL
	if err := h.servers.Update(c.Request.Context(), server); err != nil {
		respondError(c, err)
		return
	}

	if err := h.resolver.RefreshServer(c.Request.Context(), server); err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues("user", "error").Inc()
		respondError(c, err)
		return
	}
	metrics.CatalogRefreshTotal.WithLabelValues("user", "ok").Inc()

	updated, err := h.servers.FindByPublicID(c.Request.Context(), server.UserID, server.PublicID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toToolServerDTO(updated))
}

// Refresh re-reads the server's live tool list.
func (h *ToolServerHandler) Refresh(c *gin.Context) {
	server, err := h.servers.FindByPublicID(
		c.Request.Context(), auth.UserID(c), c.Param("server_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.resolver.RefreshServer(c.Request.Context(), server); err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues("user", "error").Inc()
		respondError(c, err)
		return
	}
	metrics.CatalogRefreshTotal.WithLabelValues("user", "ok").Inc()

	refreshed, err := h.servers.FindByPublicID(c.Request.Context(), server.UserID, server.PublicID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toToolServerDTO(refreshed))
}

// Delete removes a configured server and its cached tools.
func (h *ToolServerHandler) Delete(c *gin.Context) {
	err := h.servers.Delete(c.Request.Context(), auth.UserID(c), c.Param("server_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListPreconfigured returns per-user state for every built-in server,
// including ones the user never enabled.
func (h *ToolServerHandler) ListPreconfigured(c *gin.Context) {
	stored, err := h.preconfigured.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	byCode := make(map[string]*catalog.PreconfiguredServer, len(stored))
	for i := range stored {
		byCode[stored[i].Code] = &stored[i]
	}

	dtos := make([]PreconfiguredServerDTO, 0, len(catalog.PreconfiguredCodes()))
	for _, code := range catalog.PreconfiguredCodes() {
		dto := PreconfiguredServerDTO{Code: code, Tools: []ToolDTO{}}
		if server, ok := byCode[code]; ok {
			dto.Enabled = server.Enabled
			dto.Tools = toToolDTOs(server.Tools)
		}
		dtos = append(dtos, dto)
	}
	c.JSON(http.StatusOK, gin.H{"data": dtos})
}

type togglePreconfiguredRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// TogglePreconfigured enables or disables one built-in server. Enabling
// refreshes its tool list so the next turn sees the live catalog.
func (h *ToolServerHandler) TogglePreconfigured(c *gin.Context) {
	code := c.Param("code")
	if _, ok := catalog.PreconfiguredURL(code); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown preconfigured server"}})
		return
	}

	var req togglePreconfiguredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	server := &catalog.PreconfiguredServer{
		UserID:  auth.UserID(c),
		Code:    code,
		Enabled: *req.Enabled,
	}
	if err := h.preconfigured.Upsert(c.Request.Context(), server); err != nil {
		respondError(c, err)
		return
	}

	if server.Enabled {
		if err := h.resolver.RefreshPreconfigured(c.Request.Context(), server); err != nil {
			metrics.CatalogRefreshTotal.WithLabelValues("preconfigured", "error").Inc()
			respondError(c, err)
			return
		}
		metrics.CatalogRefreshTotal.WithLabelValues("preconfigured", "ok").Inc()
	}

	current, err := h.preconfigured.FindByCode(c.Request.Context(), server.UserID, code)
	if err != nil {
		respondError(c, err)
		return
	}

	dto := PreconfiguredServerDTO{Code: code, Tools: []ToolDTO{}}
	if current != nil {
		dto.Enabled = current.Enabled
		dto.Tools = toToolDTOs(current.Tools)
	}
	c.JSON(http.StatusOK, dto)
}

func toToolServerDTO(server *catalog.ToolServer) ToolServerDTO {
	return ToolServerDTO{
		ID:        server.PublicID,
		Name:      server.Name,
		URL:       server.URL,
		Tools:     toToolDTOs(server.Tools),
		CreatedAt: server.CreatedAt,
		UpdatedAt: server.UpdatedAt,
	}
}

func toToolDTOs(tools []catalog.StoredTool) []ToolDTO {
	dtos := make([]ToolDTO, len(tools))
	for i, tool := range tools {
		dtos[i] = ToolDTO{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}
	return dtos
}
