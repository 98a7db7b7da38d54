package v1

import (
	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.GET("/conversations", handler.List)
	router.GET("/conversations/:conversation_id", handler.Get)
	router.DELETE("/conversations/:conversation_id", handler.Delete)
}
