package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/avachat/internal/api"
	"github.com/avachat/internal/api/auth"
	"github.com/avachat/internal/api/users"
	"github.com/avachat/internal/clarify"
	"github.com/avachat/internal/config"
	"github.com/avachat/internal/database"
	"github.com/avachat/internal/jobqueue"
	"github.com/avachat/internal/llm"
	"github.com/avachat/internal/memory"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/orchestrator"
	"github.com/avachat/internal/scheduler"
	"github.com/avachat/internal/style"
)

// ServeCommand returns the CLI command for starting the Ava server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Ava chat server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the configured port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	databaseURL, err := database.LoadDatabaseURL()
	if err != nil {
		return fmt.Errorf("failed to resolve database URL: %w", err)
	}
	queue, err := jobqueue.NewJobQueue(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	ctx := context.Background()
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("job queue did not stop cleanly")
		}
	}()

	generator, err := llm.NewOllamaGenerator(cfg.Generator)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	engine := llm.NewEngine(generator)

	userService := users.NewService(db)
	styles := style.NewStore(db)
	memories := memory.NewStore(db)
	machine := clarify.NewMachine(clarify.NewStore(db), clarify.NewDialogStates(), cfg.Clarify.TTL)
	classifier := nlu.NewClient(cfg.NLU)

	fallback := orchestrator.NewEngineFallback(engine, db, queue)
	registry := orchestrator.NewRegistry(fallback,
		&orchestrator.GreetHandler{},
		&orchestrator.ChatHandler{},
		&orchestrator.OrderFoodHandler{},
		&orchestrator.BookTaxiHandler{},
		&orchestrator.DocumentQuestionHandler{},
		orchestrator.NewAccountHandler(userService),
	)
	orch := orchestrator.New(cfg, classifier, styles, memories, machine, registry)

	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		user, err := userService.GetByID(item.UserID)
		if err != nil {
			return "", fmt.Errorf("failed to load user: %w", err)
		}
		if item.Replay {
			return orch.ResumeMessage(ctx, user, item.Message, item.Canceled)
		}
		return orch.HandleMessage(ctx, user, item.Message, item.Canceled)
	})

	tokens := auth.NewTokenService(db, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour)
	server := api.NewServer(cfg, &api.Dependencies{
		Tokens:     tokens,
		Users:      userService,
		Chat:       api.NewChatHandlers(cfg, sched, memories),
		Notes:      api.NewNoteHandlers(db),
		AuthRoutes: auth.NewHandlers(tokens, userService),
	})

	log.Info().Int("port", cfg.Server.Port).Msg("Ava is ready")
	return server.Start()
}
