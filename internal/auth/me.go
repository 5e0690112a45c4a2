package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/middleware"
)

// GET /auth/me
func (h *Handler) Me(c echo.Context) error {
	u, err := h.users.GetUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
