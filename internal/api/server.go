// Package api exposes Ava over HTTP: authentication, the chat endpoint,
// conversation history, and notes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/api/auth"
	"github.com/avachat/internal/api/users"
	"github.com/avachat/internal/config"
)

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
}

// NewServer creates a new API server with all routes mounted.
func NewServer(cfg *config.Config, deps *Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo: e,
		port: cfg.Server.Port,
	}

	server.setupRoutes(cfg, deps)

	return server
}

// Dependencies bundles everything the route handlers need.
type Dependencies struct {
	Tokens     *auth.TokenService
	Users      *users.Service
	Chat       *ChatHandlers
	Notes      *NoteHandlers
	AuthRoutes *auth.Handlers
}

func (s *Server) setupRoutes(cfg *config.Config, deps *Dependencies) {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	api := s.echo.Group("/api")
	deps.AuthRoutes.Register(api)

	// Chat falls back to the primary user when no token is presented, so a
	// single-user install works without a login step.
	chat := api.Group("", auth.ResolveUser(deps.Tokens, deps.Users))
	chat.POST("/chat", deps.Chat.PostMessage)
	chat.GET("/chat/history", deps.Chat.GetHistory)

	notes := api.Group("/notes", auth.RequireAuth(deps.Tokens))
	notes.GET("", deps.Notes.List)
	notes.POST("", deps.Notes.Create)
	notes.GET("/:id", deps.Notes.Get)
	notes.DELETE("/:id", deps.Notes.Delete)
}

// Start begins the API server and blocks until an interrupt arrives, then
// shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf(":%d", s.port)
		log.Info().Str("addr", addr).Msg("starting API server")
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
