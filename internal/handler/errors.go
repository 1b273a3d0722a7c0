package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/middleware"
	"commandr-server/internal/model"
	"commandr-server/internal/store"
)

// statusFor maps domain errors to HTTP statuses. Anything unrecognised is a
// server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNameConflict), errors.Is(err, model.ErrAlreadyAttached):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// account returns the request's account or writes a 401.
func account(c *gin.Context) (*store.Account, bool) {
	acc, ok := middleware.AccountFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return nil, false
	}
	return acc, true
}
