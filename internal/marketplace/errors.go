package marketplace

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/booking"
)

// BookingError writes the HTTP response for an error returned by the booking service.
func BookingError(c echo.Context, err error) error {
	var conflict *booking.AssignmentConflict
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            conflict.Error(),
			"code":             "already_assigned",
			"already_assigned": true,
			"assigned_to_you":  conflict.ByCaller,
		})
	case errors.Is(err, booking.ErrAlreadyAssigned):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "already_assigned", "already_assigned": true})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, booking.ErrAlreadyInterested):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "already_interested"})
	case errors.Is(err, booking.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "invalid_state"})
	case errors.Is(err, booking.ErrMissingActor):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "missing_actor"})
	case errors.Is(err, booking.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "invalid_input"})
	}
	slog.ErrorContext(c.Request().Context(), "booking operation failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
