package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/telemetry"
)

// HubStats reports live websocket state.
type HubStats interface {
	SessionCount() int
	Subscribers(topic string) int
}

// RegisterDebugRoutes mounts /debug endpoints when enabled. They sit outside
// authentication and must stay off in production.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, hub HubStats, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug")

	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		audit(c, emitter, "debug.audit_test", "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug.GET("/ws", func(c *gin.Context) {
		out := gin.H{"sessions": hub.SessionCount()}
		if topic := c.Query("topic"); topic != "" {
			out["topic"] = topic
			out["subscribers"] = hub.Subscribers(topic)
		}
		c.JSON(http.StatusOK, out)
	})
}
