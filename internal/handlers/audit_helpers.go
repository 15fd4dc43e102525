package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/middleware"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}
	if id := observability.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	requestID := observability.RequestIDFromRequest(c.Request)
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if userID := c.GetInt(middleware.UserIDKey); userID != 0 {
		value := int64(userID)
		return &value
	}
	return nil
}

func currentUser(c *gin.Context) int {
	return c.GetInt(middleware.UserIDKey)
}

// audit records a completed mutation. A nil emitter is a no-op.
func audit(c *gin.Context, emitter *telemetry.AuditEmitter, action, text string) {
	emitter.Emit(c.Request.Context(), "INFO", action, text, requestIDFromContext(c), userIDFromContext(c))
}

// writeError maps a service error to a status and a client-safe body.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		jww.ERROR.Printf("%s %s request_id=%s: %v", c.Request.Method, c.FullPath(), requestIDFromContext(c), err)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

var errBadParam = errors.New("bad path parameter")

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		writeError(c, apperr.Wrap(apperr.KindInvalidInput, "invalid "+name, errBadParam))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the body, answering 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, apperr.Invalid("invalid request body"))
		return false
	}
	return true
}
