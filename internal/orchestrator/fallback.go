package orchestrator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/llm"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/tools"
	"github.com/avachat/pkg/models"
)

// Decider produces a normalized action for a message the intent handlers
// could not claim. Backed by the local generator in production.
type Decider interface {
	Decide(ctx context.Context, message, shortHistory string) (*llm.Action, error)
}

// EngineFallback hands unmatched messages to the decision engine and
// executes whichever tool the engine picks.
type EngineFallback struct {
	engine    Decider
	db        *sql.DB
	scheduler tools.ReminderScheduler
}

func NewEngineFallback(engine Decider, db *sql.DB, scheduler tools.ReminderScheduler) *EngineFallback {
	return &EngineFallback{engine: engine, db: db, scheduler: scheduler}
}

func (f *EngineFallback) Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	// The generator serves one request at a time; a superseded message must
	// not occupy it.
	if hctx.Canceled != nil && hctx.Canceled() {
		return "", nil
	}

	action, err := f.engine.Decide(ctx, result.Text, hctx.ShortHistory)
	if err != nil {
		return "", fmt.Errorf("failed to decide on message: %w", err)
	}

	if action.Mode != llm.ModeTool {
		return action.Reply, nil
	}

	// A superseded message must not commit side effects this late.
	if hctx.Canceled != nil && hctx.Canceled() {
		return "", nil
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("tool", action.Tool).
		Str("reason", action.Reason).
		Msg("Executing tool from decision engine")

	switch tools.Name(action.Tool) {
	case tools.CreateNote:
		res, err := tools.ExecuteCreateNote(f.db, user.ID, action.Parameters, result.Text, hctx.ShortHistory)
		if err != nil {
			return "", err
		}
		return res.Reply, nil
	case tools.CreateReminder:
		res, err := tools.ExecuteCreateReminder(ctx, f.db, f.scheduler, user.ID, action.Parameters, result.Text)
		if err != nil {
			return "", err
		}
		return res.Reply, nil
	default:
		// ORDER_FOOD and BOOK_TAXI stay conversational; the engine already
		// phrased a confirmation.
		return action.Reply, nil
	}
}
