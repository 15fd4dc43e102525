package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/auth"
	"guild-chat-service/internal/observability"
)

// Context keys set for downstream handlers.
const (
	UserIDKey    = "userID"
	UsernameKey  = "username"
	RequestIDKey = "request_id"
)

// TokenVerifier authenticates bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// UserToucher records the caller on first sight.
type UserToucher interface {
	Touch(ctx context.Context, userID int, username string) error
}

// RequestID tags the request context with the caller's or a fresh request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		c.Set(RequestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AuthMiddleware validates the bearer token and records the user.
func AuthMiddleware(verifier TokenVerifier, users UserToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		ident, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if err := users.Touch(c.Request.Context(), ident.UserID, ident.Username); err != nil {
			jww.ERROR.Printf("touch user=%d: %v", ident.UserID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(UserIDKey, ident.UserID)
		c.Set(UsernameKey, ident.Username)
		c.Next()
	}
}
