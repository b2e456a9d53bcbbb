package handler

import (
	"errors"
	"net/http"

	"opsdesk/internal/service"
	"opsdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSystemRole), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrPrivilegeNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRoleExists), errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors keep their
// operation prefix and are also attached to the context for the request logger.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
