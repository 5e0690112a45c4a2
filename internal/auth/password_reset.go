package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

const resetSent = "If the email exists, a reset link has been sent."

type RequestPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /auth/password/request
// The reply never reveals whether the account exists.
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	req := new(RequestPasswordResetRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusOK, echo.Map{"message": resetSent})
	}

	ctx := c.Request().Context()
	u, err := h.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"message": resetSent})
	}
	token, err := h.tokens.IssuePasswordReset(u, h.cfg.ResetTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "reset token signing failed", "user_id", u.ID, "error", err)
		return c.JSON(http.StatusOK, echo.Map{"message": resetSent})
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(h.cfg.AppURL, "/"), url.QueryEscape(token))
	mail, err := alerts.PasswordReset(u.Name, resetURL, h.cfg.ResetTTL)
	if err == nil {
		err = h.notifier.Send(context.WithoutCancel(ctx), u.Email, mail.Subject, mail.HTML)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "password reset email not sent", "user_id", u.ID, "error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": resetSent})
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// POST /auth/password/reset
func (h *Handler) ResetPassword(c echo.Context) error {
	req := new(ResetPasswordRequest)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	claims, err := h.tokens.Parse(req.Token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}
	if claims.Purpose != utils.PurposePasswordReset {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token purpose"})
	}

	hashed, err := hashPassword(req.NewPassword, h.cost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	ctx := c.Request().Context()
	err = h.users.SetPassword(ctx, claims.UserID, hashed)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update password"})
	}
	h.logger.InfoContext(ctx, "password reset", "user_id", claims.UserID)
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated successfully"})
}
