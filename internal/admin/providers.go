package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/auth"
	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// GET /admin/providers?active=true
func (h *Handler) ListProviders(c echo.Context) error {
	ps, err := h.providers.ListProviders(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch providers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": ps})
}

type CreateProviderBody struct {
	Name         string   `json:"name" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone" validate:"required"`
	Rating       float64  `json:"rating" validate:"gte=0,lte=5"`
	ServiceAreas []string `json:"service_areas"`
	// Password, when set, also creates a provider login.
	Password string `json:"password" validate:"omitempty,min=6"`
}

// POST /admin/providers
func (h *Handler) CreateProvider(c echo.Context) error {
	req := new(CreateProviderBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	p := &model.Provider{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Rating:       req.Rating,
		ServiceAreas: req.ServiceAreas,
		Active:       true,
	}
	if p.ServiceAreas == nil {
		p.ServiceAreas = []string{}
	}

	ctx := c.Request().Context()
	var err error
	if req.Password == "" {
		err = h.providers.CreateProvider(ctx, p)
	} else {
		var hashed string
		if hashed, err = auth.HashPassword(req.Password); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
		}
		err = h.providers.CreateProviderAccount(ctx, p, &model.User{
			Name:         p.Name,
			Email:        p.Email,
			Phone:        p.Phone,
			PasswordHash: hashed,
		})
	}
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case err != nil:
		h.logger.ErrorContext(ctx, "provider not created", "email", p.Email, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create provider"})
	}
	h.logger.InfoContext(ctx, "provider created", "provider_id", p.ID, "actor", middleware.Email(c), "with_login", req.Password != "")
	return c.JSON(http.StatusCreated, echo.Map{"provider": p})
}
