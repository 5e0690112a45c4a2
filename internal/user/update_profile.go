package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// UpdateProfileRequest leaves email and role to admins.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Phone *string `json:"phone"`
}

// PATCH /me/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	req := new(UpdateProfileRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Name == nil && req.Phone == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	for _, v := range []*string{req.Name, req.Phone} {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}

	u, err := h.users.UpdateUser(c.Request().Context(), middleware.UserID(c), store.UserPatch{Name: req.Name, Phone: req.Phone})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": u})
}
