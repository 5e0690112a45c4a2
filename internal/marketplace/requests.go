package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type CreateServiceRequestBody struct {
	CustomerName        string         `json:"customer_name" validate:"required"`
	CustomerEmail       string         `json:"customer_email" validate:"required,email"`
	CustomerPhone       string         `json:"customer_phone"`
	CustomerAddress     string         `json:"customer_address" validate:"required"`
	PreferredDate       string         `json:"preferred_date"`
	PreferredTime       string         `json:"preferred_time"`
	SpecialInstructions string         `json:"special_instructions"`
	PaymentMethod       string         `json:"payment_method"`
	Items               []pricing.Line `json:"service_items" validate:"required,min=1,dive"`
}

// POST /service-requests
// Guests may book. A signed-in caller is recorded as the customer.
func (h *Handler) CreateServiceRequest(c echo.Context) error {
	req := new(CreateServiceRequestBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	in := booking.CreateInput{
		CustomerName:        req.CustomerName,
		CustomerEmail:       req.CustomerEmail,
		CustomerPhone:       req.CustomerPhone,
		CustomerAddress:     req.CustomerAddress,
		PreferredDate:       req.PreferredDate,
		PreferredTime:       req.PreferredTime,
		SpecialInstructions: req.SpecialInstructions,
		PaymentMethod:       req.PaymentMethod,
		Items:               req.Items,
	}
	if id := middleware.UserID(c); id != "" {
		in.CustomerID = &id
	}
	r, err := h.bookings.CreateRequest(c.Request().Context(), in)
	if err != nil {
		return BookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Service request received. We will confirm shortly.",
		"request": r,
	})
}

// GET /service-requests/:id
func (h *Handler) GetServiceRequest(c echo.Context) error {
	id, ok := ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	r, err := h.bookings.Get(c.Request().Context(), id)
	if err != nil {
		return BookingError(c, err)
	}
	if !canView(c, r) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}
	return c.JSON(http.StatusOK, echo.Map{"request": r})
}

// GET /me/service-requests
func (h *Handler) MyServiceRequests(c echo.Context) error {
	rs, err := h.bookings.List(c.Request().Context(), booking.ListFilter{CustomerEmail: middleware.Email(c)})
	if err != nil {
		return BookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": rs})
}

// canView admits admins, the assigned provider and the customer who booked.
func canView(c echo.Context, r *model.ServiceRequest) bool {
	switch middleware.Role(c) {
	case model.RoleAdmin:
		return true
	case model.RoleProvider:
		pid, ok := middleware.ProviderID(c)
		return ok && r.AssignedTo(pid)
	}
	if r.CustomerID != nil && *r.CustomerID == middleware.UserID(c) {
		return true
	}
	email := middleware.Email(c)
	return email != "" && email == r.CustomerEmail
}
