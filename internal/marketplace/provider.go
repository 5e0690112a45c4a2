package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/middleware"
)

// GET /provider/jobs
// Open requests come without customer contact details.
func (h *Handler) ProviderJobs(c echo.Context) error {
	pid, _ := middleware.ProviderID(c)
	ctx := c.Request().Context()

	available, err := h.bookings.Available(ctx, pid)
	if err != nil {
		return BookingError(c, err)
	}
	assigned, err := h.bookings.Assigned(ctx, pid)
	if err != nil {
		return BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": available, "assigned": assigned})
}

// POST /service-requests/:id/show-interest
func (h *Handler) ShowInterest(c echo.Context) error {
	id, ok := ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	pid, _ := middleware.ProviderID(c)

	r, err := h.bookings.ShowInterest(c.Request().Context(), id, pid)
	if err != nil {
		return BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "Interest recorded. An admin will review and assign the job.",
		"request_id":     r.RequestID,
		"status":         r.Status,
		"interest_count": len(r.InterestedProviders),
	})
}

// POST /service-requests/:id/accept
func (h *Handler) AcceptBooking(c echo.Context) error {
	id, ok := ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	pid, _ := middleware.ProviderID(c)

	r, err := h.bookings.AcceptBooking(c.Request().Context(), id, pid)
	if err != nil {
		return BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Booking accepted", "request": r})
}
