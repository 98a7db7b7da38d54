package v1

import (
	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(router gin.IRoutes, handler *handlers.ChatHandler) {
	router.POST("/chat", handler.Create)
}
