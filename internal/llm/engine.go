package llm

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/retry"
)

// Engine turns a user message plus recent history into a normalized action.
type Engine struct {
	generator   Generator
	retryConfig retry.Config
}

// NewEngine builds an engine around a generator.
func NewEngine(generator Generator) *Engine {
	return &Engine{
		generator:   generator,
		retryConfig: retry.GeneratorConfig(),
	}
}

// Decide prompts the generator and normalizes its reply. The model call is
// retried with backoff; parse failures are not retried since the same prompt
// tends to produce the same malformed shape.
func (e *Engine) Decide(ctx context.Context, message, shortHistory string) (*Action, error) {
	prompt := BuildPrompt(message, shortHistory)

	var raw string
	result := retry.WithBackoff(ctx, e.retryConfig, func() error {
		var err error
		raw, err = e.generator.Generate(ctx, prompt)
		return err
	})
	if !result.Success {
		return nil, result.LastError
	}

	action, err := ParseAction(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", truncate(raw, 300)).Msg("generator output unusable")
		return nil, err
	}

	log.Debug().
		Str("mode", action.Mode).
		Str("tool", action.Tool).
		Msg("generator action normalized")
	return action, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
