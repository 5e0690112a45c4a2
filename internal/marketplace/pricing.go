package marketplace

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// GET /pricing?category=
func (h *Handler) GetPricing(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"items":           h.catalog.Items(c.QueryParam("category")),
		"commission_rate": pricing.CommissionRate,
	})
}

type QuoteRequest struct {
	Items []pricing.Line `json:"service_items" validate:"required,min=1,dive"`
}

// POST /pricing/quote
func (h *Handler) QuotePrice(c echo.Context) error {
	req := new(QuoteRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	q, err := h.catalog.Quote(req.Items)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "invalid_input"})
	}
	return c.JSON(http.StatusOK, q)
}
