package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"commandr-server/internal/auth"
	"commandr-server/internal/model"
	"commandr-server/internal/store"
)

const (
	sessionIDContextKey = "sessionID"
	accountContextKey   = "account"
)

func SessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := v.(string)
	return value, ok && value != ""
}

func AccountFromContext(c *gin.Context) (*store.Account, bool) {
	v, ok := c.Get(accountContextKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*store.Account)
	return acc, ok && acc != nil
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter used by websocket clients.
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}

// RequireSession verifies the session token and stores its session id.
func RequireSession(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.VerifyToken(bearerToken(c), cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}
		c.Set(sessionIDContextKey, claims.SessionID)
		c.Next()
	}
}

// RequireAccount resolves the session to its account. It must run after
// RequireSession.
func RequireAccount(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, ok := SessionIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}
		acc, err := s.ResolveBySession(sid)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "No account for session"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			c.Abort()
			return
		}
		c.Set(accountContextKey, acc)
		c.Next()
	}
}
