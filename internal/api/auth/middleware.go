package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avachat/internal/api/users"
	"github.com/avachat/pkg/models"
)

const userContextKey = "auth.user"

// UserFromContext returns the authenticated user, nil when absent.
func UserFromContext(c echo.Context) *models.User {
	if user, ok := c.Get(userContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func extractToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token := c.Request().Header.Get("X-Session-Token"); token != "" {
		return token
	}
	return c.QueryParam("token")
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
			}
			user, err := tokens.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// ResolveUser attaches the session's user when a token is present, otherwise
// the primary account. Single-user installs talk to the chat endpoint without
// logging in; the handler decides what to do when no user resolves at all.
func ResolveUser(tokens *TokenService, userService *users.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := extractToken(c); token != "" {
				if user, err := tokens.ValidateToken(token); err == nil {
					c.Set(userContextKey, user)
					return next(c)
				}
			}
			if user, err := userService.Primary(); err == nil && user != nil {
				c.Set(userContextKey, user)
			}
			return next(c)
		}
	}
}
