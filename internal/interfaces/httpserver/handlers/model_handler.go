package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/llm"
)

// ModelLister is implemented by adapters whose backend can enumerate its
// models. The SDK-backed adapters ship fixed model families and do not.
type ModelLister interface {
	Models(ctx context.Context, credential string) ([]string, error)
}

// ModelHandler exposes the configured completion providers and, where the
// backend supports it, their model lists.
type ModelHandler struct {
	providers *llm.Registry
	log       zerolog.Logger
}

// NewModelHandler builds the model handler.
func NewModelHandler(providers *llm.Registry, log zerolog.Logger) *ModelHandler {
	return &ModelHandler{providers: providers, log: log}
}

// ListProviders returns the provider names the service can stream from.
func (h *ModelHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.providers.Providers()})
}

// ListModels returns the model list of one provider's backend.
func (h *ModelHandler) ListModels(c *gin.Context) {
	adapter, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	lister, ok := adapter.(ModelLister)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
		return
	}

	models, err := lister.Models(c.Request.Context(), c.Query("credential"))
	if err != nil {
		h.log.Warn().Err(err).Str("provider", adapter.Name()).Msg("model listing failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": models})
}
