package v1

import (
	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/interfaces/httpserver/handlers"
)

func registerToolServerRoutes(router gin.IRoutes, handler *handlers.ToolServerHandler) {
	router.GET("/toolservers/preconfigured", handler.ListPreconfigured)
	router.PUT("/toolservers/preconfigured/:code", handler.TogglePreconfigured)

	router.GET("/toolservers", handler.List)
	router.POST("/toolservers", handler.Create)
	router.GET("/toolservers/:server_id", handler.Get)
	router.PUT("/toolservers/:server_id", handler.Update)
	router.POST("/toolservers/:server_id/refresh", handler.Refresh)
	router.DELETE("/toolservers/:server_id", handler.Delete)
}
