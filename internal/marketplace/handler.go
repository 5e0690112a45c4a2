package marketplace

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
)

// Handler serves the customer and provider facing routes.
type Handler struct {
	bookings   *booking.Service
	catalog    *pricing.Catalog
	complaints store.ComplaintStore
	logger     *slog.Logger
}

func NewHandler(bookings *booking.Service, catalog *pricing.Catalog, complaints store.ComplaintStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bookings: bookings, catalog: catalog, complaints: complaints, logger: logger}
}

// ParamID reads a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
