package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commandr-server/internal/auth"
)

type SessionHandler struct {
	TokenConfig auth.TokenConfig
}

// Mint issues a token for a brand-new session. Whether the session gets an
// account on first use depends on the store's session policy.
func (h *SessionHandler) Mint(c *gin.Context) {
	token, sessionID, err := auth.NewSession(h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "sessionId": sessionID})
}
