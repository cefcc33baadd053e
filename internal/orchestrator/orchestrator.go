// Package orchestrator routes an incoming message through style learning,
// clarification dialogs, classification, the confidence gate, and finally an
// intent handler, producing exactly one reply per message.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/chatanalysis"
	"github.com/avachat/internal/clarify"
	"github.com/avachat/internal/config"
	"github.com/avachat/internal/memory"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/respond"
	"github.com/avachat/internal/style"
	"github.com/avachat/pkg/models"
)

// Classifier resolves free text into an intent and entities.
type Classifier interface {
	Parse(ctx context.Context, text string) (*nlu.Result, error)
}

// StyleStore persists per-user style profiles.
type StyleStore interface {
	Get(userID int64) (style.Profile, error)
	Save(profile style.Profile) error
}

// MemoryStore persists conversation memory and history.
type MemoryStore interface {
	Get(userID int64) (*memory.ConversationMemory, error)
	Update(userID int64, lastMessage, intent string) error
	Record(userID int64, sender, message, reason string) error
	ShortHistory(userID int64, limit int) (string, error)
}

const (
	emptyMessageReply   = "Say something and I'll see what I can do 😄"
	classifierDownReply = "Sorry, I had trouble understanding that."
	noIntentReply       = "I'm not sure what you mean yet, but I'm still learning!"
	rejectedReply       = "No worries, I won't treat that as that kind of request. Let's try again — what would you like me to do?"
)

// Orchestrator owns the per-message pipeline.
type Orchestrator struct {
	cfg        *config.Config
	classifier Classifier
	styles     StyleStore
	memories   MemoryStore
	machine    *clarify.Machine
	registry   *Registry
}

func New(cfg *config.Config, classifier Classifier, styles StyleStore, memories MemoryStore, machine *clarify.Machine, registry *Registry) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		styles:     styles,
		memories:   memories,
		machine:    machine,
		registry:   registry,
	}
}

// HandleMessage runs one message through the pipeline and returns Ava's reply.
// canceled reports whether a newer message from the same user superseded this
// one; when it returns true the reply is discarded upstream and side effects
// past that point are suppressed.
func (o *Orchestrator) HandleMessage(ctx context.Context, user *models.User, text string, canceled func() bool) (string, error) {
	return o.handle(ctx, user, text, canceled, true)
}

// ResumeMessage reprocesses a message that is already in the history, such
// as one whose first processing was lost to a dropped connection. It runs
// the same pipeline but does not record the user's side again.
func (o *Orchestrator) ResumeMessage(ctx context.Context, user *models.User, text string, canceled func() bool) (string, error) {
	return o.handle(ctx, user, text, canceled, false)
}

func (o *Orchestrator) handle(ctx context.Context, user *models.User, text string, canceled func() bool, record bool) (string, error) {
	if user == nil {
		return "", errors.New("failed to handle message: no user resolved")
	}
	if canceled == nil {
		canceled = func() bool { return false }
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return emptyMessageReply, nil
	}

	if record {
		if err := o.memories.Record(user.ID, "user", trimmed, ""); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record user message")
		}
	}

	profile := o.learnStyle(user.ID, trimmed)

	mem, err := o.memories.Get(user.ID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to load conversation memory")
		mem = &memory.ConversationMemory{UserID: user.ID}
	}

	// A pending clarification intercepts the message before classification:
	// "yes" is an answer, not a new request.
	if o.machine.Awaiting(user.ID) {
		reply, err := o.resolveClarification(ctx, user, trimmed, profile, mem, canceled)
		if err != nil {
			return "", err
		}
		o.deliver(user.ID, reply, "clarification", canceled)
		return reply, nil
	}

	if canceled() {
		return "", nil
	}

	result, err := o.classifier.Parse(ctx, trimmed)
	if err != nil {
		// Memory does not advance on classifier failure; the user will
		// resend and the turn should look untouched.
		log.Error().Err(err).Int64("user_id", user.ID).Msg("classifier unavailable")
		o.deliver(user.ID, classifierDownReply, "classifier_error", canceled)
		return classifierDownReply, nil
	}

	if result.Intent == nil || result.Intent.Name == "" {
		o.advanceMemory(user.ID, trimmed, "")
		o.deliver(user.ID, noIntentReply, "no_intent", canceled)
		return noIntentReply, nil
	}

	intent := result.Intent
	log.Info().
		Int64("user_id", user.ID).
		Str("intent", intent.Name).
		Float64("confidence", intent.Confidence).
		Msg("message classified")

	if intent.Confidence < o.cfg.Chat.ConfidenceThreshold && o.cfg.IsHighRiskIntent(intent.Name) {
		reply, err := o.beginClarification(user, trimmed, intent, profile, mem)
		if err != nil {
			return "", err
		}
		o.deliver(user.ID, reply, "clarification", canceled)
		return reply, nil
	}

	o.advanceMemory(user.ID, trimmed, intent.Name)
	reply, err := o.route(ctx, result, user, profile, mem, trimmed, canceled)
	if err != nil {
		return "", err
	}
	o.deliver(user.ID, reply, intent.Name, canceled)
	return reply, nil
}

// learnStyle blends this message's style measurement into the stored profile.
// Style learning is best effort; a storage hiccup never fails the turn.
func (o *Orchestrator) learnStyle(userID int64, text string) style.Profile {
	profile, err := o.styles.Get(userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to load style profile")
		profile = style.DefaultProfile(userID)
	}
	profile = style.Blend(profile, style.Analyse(text), style.DefaultAlpha)
	if err := o.styles.Save(profile); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to save style profile")
	}
	return profile
}

func (o *Orchestrator) resolveClarification(ctx context.Context, user *models.User, text string, profile style.Profile, mem *memory.ConversationMemory, canceled func() bool) (string, error) {
	outcome, err := o.machine.Resolve(user.ID, text)
	if err != nil {
		return "", fmt.Errorf("failed to resolve clarification: %w", err)
	}

	rctx := o.respondContext(user, profile, mem)
	switch outcome.Kind {
	case clarify.OutcomeConfirmed:
		// Replay the stored message with its predicted intent at full
		// confidence, as if the classifier had been sure the first time.
		forced := &nlu.Result{
			Text:   outcome.Sample.Text,
			Intent: &nlu.Intent{Name: outcome.Sample.PredictedIntent, Confidence: 1.0},
		}
		o.advanceMemory(user.ID, outcome.Sample.Text, outcome.Sample.PredictedIntent)
		return o.route(ctx, forced, user, profile, mem, outcome.Sample.Text, canceled)
	case clarify.OutcomeRejected:
		return rejectedReply, nil
	case clarify.OutcomeDismissed:
		return respond.Render(respond.ClarifyDropped, rctx), nil
	case clarify.OutcomeMissing:
		return respond.Render(respond.ClarifyNoMatch, rctx), nil
	case clarify.OutcomeExpired:
		return respond.Render(respond.ClarifyExpired, rctx), nil
	default:
		return respond.Render(respond.ClarifyRetry, rctx), nil
	}
}

func (o *Orchestrator) beginClarification(user *models.User, text string, intent *nlu.Intent, profile style.Profile, mem *memory.ConversationMemory) (string, error) {
	if _, err := o.machine.Begin(user.ID, text, intent.Name, intent.Confidence); err != nil {
		return "", fmt.Errorf("failed to begin clarification: %w", err)
	}
	o.advanceMemory(user.ID, text, intent.Name)

	rctx := o.respondContext(user, profile, mem)
	rctx.IntentFriendlyName = respond.FriendlyIntentName(intent.Name)
	rctx.IntentConfidence = intent.Confidence
	return respond.Render(respond.ClarifyLowConf, rctx), nil
}

func (o *Orchestrator) route(ctx context.Context, result *nlu.Result, user *models.User, profile style.Profile, mem *memory.ConversationMemory, original string, canceled func() bool) (string, error) {
	shortHistory, err := o.memories.ShortHistory(user.ID, o.cfg.Chat.HistoryWindow)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to load short history")
	}

	chat := chatanalysis.Analyse(original)
	hctx := &HandlerContext{
		Style:        profile,
		Memory:       mem,
		Chat:         &chat,
		ShortHistory: shortHistory,
		Canceled:     canceled,
	}
	return o.registry.Route(ctx, result, user, hctx)
}

func (o *Orchestrator) respondContext(user *models.User, profile style.Profile, mem *memory.ConversationMemory) respond.Context {
	return respond.Context{
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
		Style:        profile,
		MessageCount: mem.MessageCount,
	}
}

func (o *Orchestrator) advanceMemory(userID int64, text, intent string) {
	if err := o.memories.Update(userID, text, intent); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to update conversation memory")
	}
}

// deliver records Ava's side of the turn. A superseded message never lands
// in history; its reply is dropped upstream too.
func (o *Orchestrator) deliver(userID int64, reply, reason string, canceled func() bool) {
	if reply == "" || canceled() {
		return
	}
	if err := o.memories.Record(userID, "ava", reply, reason); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to record reply")
	}
}
