package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type BootstrapAdminRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
}

// POST /auth/bootstrap-admin
// Promotes an existing account when the shared bootstrap secret matches.
func (h *Handler) BootstrapAdmin(c echo.Context) error {
	if h.cfg.BootstrapSecret == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
	}
	req := new(BootstrapAdminRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.cfg.BootstrapSecret)) != 1 {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
	}

	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	err := h.users.SetRoleByEmail(ctx, email, model.RoleAdmin)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote user"})
	}
	h.logger.WarnContext(ctx, "user promoted to admin via bootstrap", "actor", email)
	return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "email": email})
}
