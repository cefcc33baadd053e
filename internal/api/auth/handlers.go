package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/api/users"
)

// Handlers serves login/logout.
type Handlers struct {
	tokens      *TokenService
	userService *users.Service
}

// NewHandlers creates auth handlers.
func NewHandlers(tokens *TokenService, userService *users.Service) *Handlers {
	return &Handlers{tokens: tokens, userService: userService}
}

// Register mounts the auth routes.
func (h *Handlers) Register(g *echo.Group) {
	g.POST("/auth/login", h.login)
	g.POST("/auth/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"display_name"`
}

func (h *Handlers) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := h.userService.Authenticate(req.Email, req.Password)
	if err != nil {
		log.Warn().Str("email", req.Email).Msg("failed login attempt")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	token, expiresAt, err := h.tokens.CreateSession(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Name:      user.DisplayName,
	})
}

func (h *Handlers) logout(c echo.Context) error {
	token := extractToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing session token")
	}
	if err := h.tokens.RevokeSession(token); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}
	return c.NoContent(http.StatusNoContent)
}
