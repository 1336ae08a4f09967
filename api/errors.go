package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/valetmatch/valetmatch/internal/domain"
)

// respondError maps the core failure taxonomy onto HTTP statuses. Anything
// outside the taxonomy is treated as a bad request, matching how the intake
// validations surface.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotNotified):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrNotAwaitingApproval):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNoEligibleValeters):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
