package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type VersionHandler struct{}

func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": "commandr-server", "version": Version})
}
