// Package orchestrator composes classification, clarification, style
// tracking, and intent handling into the single entry point for a chat turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/llm"

	"github.com/avachat/internal/chatanalysis"
	"github.com/avachat/internal/memory"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/style"
	"github.com/avachat/pkg/models"
)

// HandlerContext carries per-turn state into handlers.
type HandlerContext struct {
	Style        style.Profile
	Memory       *memory.ConversationMemory
	Chat         *chatanalysis.Analysis
	ShortHistory string
	// Canceled reports whether a newer message superseded this turn.
	// Handlers with side effects must check it immediately before
	// committing; a side effect that already committed is kept, only the
	// reply gets suppressed upstream.
	Canceled func() bool
}

// IntentHandler handles a named subset of intents.
type IntentHandler interface {
	CanHandle(intentName string) bool
	Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error)
}

// FallbackHandler accepts anything. It is a separate type so a registry
// cannot be built without one.
type FallbackHandler interface {
	Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error)
}

// Registry routes a classified message to the first matching handler, in
// registration order, falling back to the required catch-all.
type Registry struct {
	handlers []IntentHandler
	fallback FallbackHandler
}

// NewRegistry builds a registry. Order matters: first match wins.
func NewRegistry(fallback FallbackHandler, handlers ...IntentHandler) *Registry {
	return &Registry{handlers: handlers, fallback: fallback}
}

const handlerFumbleReply = "I understood that, but I couldn't find the words to answer. Mind trying again?"

// Route dispatches to the matching handler and validates its reply. Most
// handler failures degrade to a generic reply; unusable generator output is
// the one error that escapes, so the transport can report it distinctly.
func (r *Registry) Route(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	intentName := ""
	if result.Intent != nil {
		intentName = result.Intent.Name
	}

	for _, handler := range r.handlers {
		if handler.CanHandle(intentName) {
			return r.invoke(ctx, handler.Handle, result, user, hctx, intentName)
		}
	}
	return r.invoke(ctx, r.fallback.Handle, result, user, hctx, intentName)
}

type handleFunc func(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error)

func (r *Registry) invoke(ctx context.Context, handle handleFunc, result *nlu.Result, user *models.User, hctx *HandlerContext, intentName string) (string, error) {
	reply, err := safeHandle(ctx, handle, result, user, hctx, intentName)
	if err != nil {
		if errors.Is(err, llm.ErrBadModelOutput) {
			return "", err
		}
		log.Error().Err(err).Str("intent", intentName).Msg("handler failed")
		return handlerFumbleReply, nil
	}
	if reply == "" {
		// A superseded turn legitimately produces nothing.
		if hctx.Canceled != nil && hctx.Canceled() {
			return "", nil
		}
		log.Warn().Str("intent", intentName).Msg("handler returned empty reply")
		return handlerFumbleReply, nil
	}
	return reply, nil
}

// safeHandle turns a handler panic into an ordinary handler error so one
// buggy handler costs a degraded reply, not the turn.
func safeHandle(ctx context.Context, handle handleFunc, result *nlu.Result, user *models.User, hctx *HandlerContext, intentName string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("intent", intentName).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			reply = ""
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handle(ctx, result, user, hctx)
}
