package admin

import (
	"log/slog"

	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/store"
)

// Handler serves the /admin routes. Every route runs behind AdminGuard, so the
// admin's email from the token is the actor for audited operations.
type Handler struct {
	bookings   *booking.Service
	users      store.UserStore
	providers  store.ProviderDirectory
	complaints store.ComplaintStore
	logger     *slog.Logger
}

func NewHandler(bookings *booking.Service, users store.UserStore, providers store.ProviderDirectory, complaints store.ComplaintStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bookings: bookings, users: users, providers: providers, complaints: complaints, logger: logger}
}
