package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
	"github.com/businessboom/server/usecase"
)

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

// respondError maps usecase failures to HTTP responses
func respondError(c echo.Context, err error, logger *zap.Logger) error {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrEmptyMessage):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repositories.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, usecase.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, usecase.ErrSessionBusy):
		return http.StatusConflict, "session_busy"
	case errors.Is(err, usecase.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, usecase.ErrWrongMode):
		return http.StatusConflict, "wrong_mode"
	case errors.Is(err, entities.ErrSessionClosed):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, usecase.ErrBusinessContextRequired):
		return http.StatusConflict, "business_context_required"
	case errors.Is(err, usecase.ErrVideoUnavailable):
		return http.StatusServiceUnavailable, "video_unavailable"
	case errors.Is(err, usecase.ErrUpstream), errors.Is(err, usecase.ErrAnalysisMalformed):
		return http.StatusBadGateway, "upstream_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
