package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Clinic roles.
const (
	RoleAdmin     = "ADMIN"
	RoleMedico    = "MEDICO"
	RoleAsistente = "ASISTENTE"
)

// ValidRole reports whether role is one of the known clinic roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMedico, RoleAsistente:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the user has one of the
// specified roles. ADMIN always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
