package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// RequireRoles admits callers whose token carries one of roles.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			if role == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role missing"})
			}
			if !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
			}
			return next(c)
		}
	}
}

// RequireProvider admits provider accounts that are linked to a directory entry.
func RequireProvider(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Role(c) != model.RoleProvider {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "provider access only"})
		}
		if _, ok := ProviderID(c); !ok {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is not linked to a provider"})
		}
		return next(c)
	}
}
