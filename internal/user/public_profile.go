package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/store"
)

// ProviderCard is what customers may see about a provider.
type ProviderCard struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Rating       float64  `json:"rating"`
	ServiceAreas []string `json:"service_areas"`
	Active       bool     `json:"active"`
}

// GET /providers/:id
func (h *Handler) GetProviderProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	p, err := h.providers.GetProvider(c.Request().Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load provider"})
	}
	return c.JSON(http.StatusOK, ProviderCard{
		ID:           p.ID,
		Name:         p.Name,
		Rating:       p.Rating,
		ServiceAreas: p.ServiceAreas,
		Active:       p.Active,
	})
}
