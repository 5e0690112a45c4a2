package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	requests, err := h.bookings.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "request stats failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute stats"})
	}

	// Counts below are best effort.
	users, _ := h.users.CountUsers(ctx)
	var providers, openComplaints int
	if ps, err := h.providers.ListProviders(ctx, true); err == nil {
		providers = len(ps)
	}
	if cs, err := h.complaints.ListComplaints(ctx, model.ComplaintPending); err == nil {
		openComplaints = len(cs)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"requests":           requests,
		"users":              users,
		"active_providers":   providers,
		"pending_complaints": openComplaints,
	})
}
