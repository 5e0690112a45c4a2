package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" validate:"required,min=6"`
}

type TokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// POST /auth/signup
// Self-service accounts are always customers. Providers are created by admins.
func (h *Handler) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	hashed, err := hashPassword(req.Password, h.cost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	u := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         model.RoleCustomer,
		PasswordHash: hashed,
	}
	ctx := c.Request().Context()
	if err := h.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		h.logger.ErrorContext(ctx, "signup failed", "email", u.Email, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create account"})
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	h.logger.InfoContext(ctx, "user signed up", "user_id", u.ID, "actor", u.Email)
	return c.JSON(http.StatusCreated, TokenResponse{Token: token, User: u})
}
