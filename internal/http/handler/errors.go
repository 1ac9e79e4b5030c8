package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/service"
	"basegraph.app/codesight/internal/store"
)

// statusFor maps service, store and provider errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "connection not found"
	case errors.Is(err, service.ErrRepositoryClaimed):
		return http.StatusConflict, "repository is already connected by another user"
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case provider.KindNotFound:
			return http.StatusNotFound, "repository not found on provider"
		case provider.KindForbidden, provider.KindUnauthorized:
			return http.StatusForbidden, "provider denied access to the repository"
		case provider.KindRateLimited:
			return http.StatusTooManyRequests, "provider rate limit exceeded, try again later"
		default:
			return http.StatusBadGateway, "provider request failed"
		}
	}

	return http.StatusInternalServerError, "internal server error"
}

func respondError(c *gin.Context, err error, msg string) {
	status, clientMsg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), msg, "error", err)
	} else {
		slog.WarnContext(c.Request.Context(), msg, "error", err, "status", status)
	}
	c.JSON(status, gin.H{"error": clientMsg})
}
