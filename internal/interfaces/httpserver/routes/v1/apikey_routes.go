package v1

import (
	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

func registerAPIKeyRoutes(router gin.IRoutes, handler *handlers.APIKeyHandler) {
	router.GET("/apikeys", handler.List)
	router.POST("/apikeys", handler.Create)
	router.DELETE("/apikeys/:key_id", handler.Delete)
}
