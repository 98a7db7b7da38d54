package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"moopoint/chat-api/internal/utils/platformerrors"
)

// respondError maps a domain error onto an HTTP status and JSON body.
func respondError(c *gin.Context, err error) {
	status := platformerrors.HTTPStatus(err)

	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		c.JSON(status, gin.H{
			"error": gin.H{
				"type":    platformErr.Type,
				"message": platformErr.Message,
			},
		})
		return
	}

	c.JSON(status, gin.H{
		"error": gin.H{"message": err.Error()},
	})
}
