package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commandr-server/internal/middleware"
	"commandr-server/internal/store"
)

type AccountHandler struct {
	Store *store.Store
}

type accountNameBody struct {
	Name string `json:"name"`
}

func accountJSON(acc *store.Account, schemas, assets int) gin.H {
	return gin.H{
		"id":         acc.ID,
		"name":       acc.Name,
		"createdAt":  acc.CreatedAt.UnixMilli(),
		"accessedAt": acc.AccessedAt().UnixMilli(),
		"changedAt":  acc.ChangedAt().UnixMilli(),
		"schemas":    schemas,
		"assets":     assets,
		"usage":      acc.Usage(),
		"loader":     acc.Resolver().ID(),
	}
}

func (h *AccountHandler) Get(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, accountJSON(acc, len(h.Store.SchemasOf(acc.ID)), len(h.Store.AssetsOf(acc.ID))))
}

// Create registers a named account and binds the caller's session to it.
func (h *AccountHandler) Create(c *gin.Context) {
	sid, ok := middleware.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}
	var body accountNameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing name"})
		return
	}

	acc, err := h.Store.Create(body.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.BindSession(sid, acc.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountJSON(acc, 0, 0))
}

// Login binds the caller's session to an existing named account.
func (h *AccountHandler) Login(c *gin.Context) {
	sid, ok := middleware.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}
	var body accountNameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	acc, err := h.Store.ResolveByName(body.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.BindSession(sid, acc.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountJSON(acc, len(h.Store.SchemasOf(acc.ID)), len(h.Store.AssetsOf(acc.ID))))
}
