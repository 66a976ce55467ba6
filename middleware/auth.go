package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-finder-go/utils"
)

const (
	SessionCookie = "session"
	userIDKey     = "user_id"
)

// Session resolves the caller from the session cookie, falling back to an
// Authorization: Bearer header, and stores the hex user id under "user_id".
// Requests without a valid session pass through anonymously.
func Session(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		if token == "" {
			parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}

		if token != "" {
			if id, err := utils.ParseSessionToken(secret, token); err == nil {
				c.Set(userIDKey, id.Hex())
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests that Session could not attribute to a user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerID(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Must be logged in."})
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user id, or nil for anonymous requests.
func CallerID(c *gin.Context) *primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(c.GetString(userIDKey))
	if err != nil {
		return nil
	}
	return &id
}
