package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/infrastructure/auth"
)

// APIKeyHandler manages stored provider credentials. Key material is
// encrypted before it reaches the repository and never returned in responses.
type APIKeyHandler struct {
	apikeys apikey.Repository
	cipher  apikey.Cipher
	log     zerolog.Logger
}

// NewAPIKeyHandler builds the API key handler.
func NewAPIKeyHandler(apikeys apikey.Repository, cipher apikey.Cipher, log zerolog.Logger) *APIKeyHandler {
	return &APIKeyHandler{apikeys: apikeys, cipher: cipher, log: log}
}

// APIKeyDTO is the wire form of a stored key, ciphertext excluded.
type APIKeyDTO struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type createAPIKeyRequest struct {
	Provider string `json:"provider" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Key      string `json:"key" binding:"required"`
}

// Create stores a new encrypted credential.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	ciphertext, err := h.cipher.Encrypt(req.Key)
	if err != nil {
		respondError(c, err)
		return
	}

	key := &apikey.APIKey{
		UserID:        auth.UserID(c),
		Provider:      req.Provider,
		Name:          req.Name,
		KeyCiphertext: ciphertext,
	}
	if err := h.apikeys.Create(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAPIKeyDTO(key))
}

// List returns the caller's stored keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.apikeys.ListByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]APIKeyDTO, len(keys))
	for i := range keys {
		dtos[i] = toAPIKeyDTO(&keys[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": dtos})
}

// Delete removes one stored key.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	err := h.apikeys.Delete(c.Request.Context(), auth.UserID(c), c.Param("key_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func toAPIKeyDTO(key *apikey.APIKey) APIKeyDTO {
	return APIKeyDTO{
		ID:        key.PublicID,
		Provider:  key.Provider,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
	}
}
