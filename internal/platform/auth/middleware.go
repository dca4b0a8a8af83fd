package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserRoleKey  contextKey = "user_role"
)

// PasswordCutoffFunc reports when the user last changed their password.
// Tokens issued before that instant are rejected, so a password change
// invalidates every previously issued session. A nil return means no cutoff.
type PasswordCutoffFunc func(ctx context.Context, userID uuid.UUID) (*time.Time, error)

// Middleware returns echo middleware that authenticates Bearer tokens and
// injects the user identity into the request context.
func Middleware(issuer *TokenIssuer, cutoff PasswordCutoffFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := issuer.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			ctx := c.Request().Context()

			if cutoff != nil {
				changedAt, err := cutoff(ctx, userID)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
				}
				if changedAt != nil && claims.IssuedAt != nil &&
					claims.IssuedAt.Time.Before(changedAt.Truncate(time.Second)) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token issued before password change")
				}
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// UserIDFromContext retrieves the authenticated user id from context.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

// EmailFromContext retrieves the authenticated user email from context.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

// RoleFromContext retrieves the authenticated user role from context.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}
