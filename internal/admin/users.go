package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// GET /admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch users"})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// UpdateUserBody lists the only fields an admin may change on an account.
type UpdateUserBody struct {
	Name  *string     `json:"name" validate:"omitempty,min=1"`
	Email *string     `json:"email" validate:"omitempty,email"`
	Phone *string     `json:"phone"`
	Role  *model.Role `json:"role" validate:"omitempty,oneof=customer provider admin"`
}

// PATCH /admin/users/:id
func (h *Handler) UpdateUser(c echo.Context) error {
	id := c.Param("id")
	req := new(UpdateUserBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}

	ctx := c.Request().Context()
	u, err := h.users.UpdateUser(ctx, id, store.UserPatch{Name: req.Name, Email: req.Email, Phone: req.Phone, Role: req.Role})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, store.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}
	h.logger.InfoContext(ctx, "user updated", "user_id", id, "actor", middleware.Email(c))
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// DELETE /admin/users/:id
func (h *Handler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	u, err := h.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load user"})
	}
	if u.Role == model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "admin accounts cannot be deleted"})
	}
	if err := h.users.DeleteUser(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}
	h.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor", middleware.Email(c))
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted", "user_id": id})
}
