// Package handlers provides the HTTP handlers for the process control API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/pm2-remote/internal/services"
)

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidNamespace):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrInvalidCredential),
		errors.Is(err, services.ErrInvalidTokenFormat),
		errors.Is(err, services.ErrInvalidTOTP):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrProcessNotFound),
		errors.Is(err, services.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrProcessExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
