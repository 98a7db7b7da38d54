package v1

import (
	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

func registerModelRoutes(router gin.IRoutes, handler *handlers.ModelHandler) {
	router.GET("/providers", handler.ListProviders)
	router.GET("/providers/:provider/models", handler.ListModels)
}
