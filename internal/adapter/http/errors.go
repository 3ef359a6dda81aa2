package http

import (
	"log/slog"
	"net/http"

	"chama-backend/internal/apperr"

	"github.com/labstack/echo/v4"
)

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindIntegration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a usecase error to its status. Unclassified errors are
// logged and answered without detail.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(status, ErrorResponse{Error: "internal error"})
	}
	if status == http.StatusBadGateway {
		log.WarnContext(c.Request().Context(), "provider call failed", "path", c.Path(), "err", err)
	}
	return c.JSON(status, ErrorResponse{Error: apperr.Message(err)})
}

// bindAndValidate answers 400/422 itself and reports whether to continue.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}
