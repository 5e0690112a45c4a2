package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/marketplace"
	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// GET /admin/service-requests?status=&provider_id=&customer_email=&limit=
func (h *Handler) ListServiceRequests(c echo.Context) error {
	f := booking.ListFilter{
		Status:        model.Status(c.QueryParam("status")),
		CustomerEmail: c.QueryParam("customer_email"),
	}
	if v := c.QueryParam("provider_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider_id"})
		}
		f.ProviderID = &id
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		f.Limit = n
	}

	rs, err := h.bookings.List(c.Request().Context(), f)
	if err != nil {
		return marketplace.BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": rs, "count": len(rs)})
}

type UpdateRequestBody struct {
	Status                  model.Status `json:"status"`
	AssignedProviderID      *int64       `json:"assigned_provider_id" validate:"omitempty,gt=0"`
	Priority                *string      `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	AdminNotes              *string      `json:"admin_notes"`
	PaymentMethod           *string      `json:"payment_method"`
	ProofOfPaymentURL       *string      `json:"proof_of_payment_url" validate:"omitempty,url"`
	CustomerPaymentReceived *bool        `json:"customer_payment_received"`
	ProviderPaymentMade     *bool        `json:"provider_payment_made"`
	CommissionCollected     *bool        `json:"commission_collected"`
}

// PATCH /admin/service-requests/:id
// An omitted status leaves the current one in place.
func (h *Handler) UpdateServiceRequest(c echo.Context) error {
	id, ok := marketplace.ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	req := new(UpdateRequestBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	r, err := h.bookings.UpdateStatus(c.Request().Context(), id, req.Status, booking.StatusChange{
		Actor:              middleware.Email(c),
		AssignedProviderID: req.AssignedProviderID,
		Admin: store.AdminFields{
			Priority:                req.Priority,
			AdminNotes:              req.AdminNotes,
			PaymentMethod:           req.PaymentMethod,
			ProofOfPaymentURL:       req.ProofOfPaymentURL,
			CustomerPaymentReceived: req.CustomerPaymentReceived,
			ProviderPaymentMade:     req.ProviderPaymentMade,
			CommissionCollected:     req.CommissionCollected,
		},
	})
	if err != nil {
		return marketplace.BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"request": r})
}

// POST /admin/service-requests/:id/broadcast
func (h *Handler) Broadcast(c echo.Context) error {
	id, ok := marketplace.ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	r, err := h.bookings.Broadcast(c.Request().Context(), id, middleware.Email(c))
	if err != nil {
		return marketplace.BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Request broadcast to providers", "request": r})
}

type AssignBody struct {
	ProviderID int64 `json:"provider_id" validate:"required,gt=0"`
}

// POST /admin/service-requests/:id/assign-provider
func (h *Handler) AssignProvider(c echo.Context) error {
	id, ok := marketplace.ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	req := new(AssignBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res, err := h.bookings.AdminAssignProvider(c.Request().Context(), id, req.ProviderID, middleware.Email(c))
	if err != nil {
		return marketplace.BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":         "Provider assigned",
		"request":         res.Request,
		"others_notified": res.OthersNotified,
	})
}

// DELETE /admin/service-requests/:id/assign-provider/:providerId
// Drops a provider from the interest list.
func (h *Handler) RejectInterest(c echo.Context) error {
	id, ok := marketplace.ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	pid, ok := marketplace.ParamID(c, "providerId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}

	r, err := h.bookings.AdminRejectInterest(c.Request().Context(), id, pid, middleware.Email(c))
	if err != nil {
		return marketplace.BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Interest removed", "request": r})
}
