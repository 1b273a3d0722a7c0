package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commandr-server/internal/store"
)

type UnitHandler struct {
	Store *store.Store
}

// Builtins lists the trusted unit names every account can use.
func (h *UnitHandler) Builtins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"units": h.Store.Builtins().Names()})
}

// Evaluate resolves a unit by name through the caller's own resolver and runs
// it with the given params.
func (h *UnitHandler) Evaluate(c *gin.Context) {
	acc, ok := account(c)
	if !ok {
		return
	}
	var body evaluateBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}

	u, err := acc.Resolver().Resolve(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	ev, err := u.New()
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := ev.Evaluate(c.Request.Context(), body.Params)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unit": u.Name(), "loader": u.Loader(), "result": result})
}
