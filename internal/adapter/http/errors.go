package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/auth"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/credit"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"

	"github.com/labstack/echo/v4"
)

// statusFor maps domain errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, loan.ErrNotFound), errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrInvalidTransition), errors.Is(err, loan.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, loan.ErrInvalidInput), errors.Is(err, loan.ErrExceedsPlafond):
		return http.StatusUnprocessableEntity
	case errors.Is(err, credit.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, log *slog.Logger, err error) error {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusInternalServerError:
		log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		msg = "internal error"
	case http.StatusConflict:
		if errors.Is(err, loan.ErrConcurrentModification) {
			msg = "loan was modified concurrently, try again"
		}
	}
	return c.JSON(code, ErrorResponse{Error: msg})
}
