package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"forum-service/internal/telemetry"
)

const requestIDContextKey = "requestID"

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(requestIDContextKey); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int {
	if userID := c.GetInt("userID"); userID != 0 {
		return &userID
	}
	return nil
}

// emitAudit falls back to the authenticated user when userID is nil.
func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, level, action, text string, userID *int) {
	if emitter == nil {
		return
	}
	if userID == nil {
		userID = userIDFromContext(c)
	}
	emitter.EmitAction(c.Request.Context(), level, action, text, requestIDFromContext(c), userID)
}
