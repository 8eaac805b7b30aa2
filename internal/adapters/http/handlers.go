package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Pulse/internal/app"
)

func handlerHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handlerRooms exposes a read-only occupancy snapshot for ops.
func handlerRooms(rooms *app.Registry, calls *app.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"rooms":        rooms.Occupancy(),
			"active_calls": calls.Active(),
		})
	}
}
