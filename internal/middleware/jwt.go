package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

const (
	keyUserID     = "user_id"
	keyEmail      = "email"
	keyRole       = "role"
	keyProviderID = "provider_id"
)

// JWT rejects requests without a valid session token and stores the caller's
// identity on the context.
func JWT(tokens *utils.Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := utils.BearerToken(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			claims, err := tokens.Parse(raw)
			if err != nil || claims.Purpose != "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": utils.ErrInvalidToken.Error()})
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}

// OptionalJWT records the identity when a valid token is present and lets
// anonymous requests through.
func OptionalJWT(tokens *utils.Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, err := utils.BearerToken(c); err == nil {
				if claims, err := tokens.Parse(raw); err == nil && claims.Purpose == "" {
					setIdentity(c, claims)
				}
			}
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, claims *utils.Claims) {
	c.Set(keyUserID, claims.UserID)
	c.Set(keyEmail, claims.Email)
	c.Set(keyRole, claims.Role)
	if claims.ProviderID != nil {
		c.Set(keyProviderID, *claims.ProviderID)
	}
}

func UserID(c echo.Context) string {
	id, _ := c.Get(keyUserID).(string)
	return id
}

func Email(c echo.Context) string {
	email, _ := c.Get(keyEmail).(string)
	return email
}

func Role(c echo.Context) model.Role {
	role, _ := c.Get(keyRole).(model.Role)
	return role
}

// ProviderID is set only for provider accounts linked to a directory entry.
func ProviderID(c echo.Context) (int64, bool) {
	id, ok := c.Get(keyProviderID).(int64)
	return id, ok
}
