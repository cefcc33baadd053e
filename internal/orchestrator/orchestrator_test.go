package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avachat/internal/clarify"
	"github.com/avachat/internal/config"
	"github.com/avachat/internal/memory"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/internal/style"
	"github.com/avachat/pkg/models"
)

type fakeClassifier struct {
	result *nlu.Result
	err    error
	calls  int
}

func (f *fakeClassifier) Parse(ctx context.Context, text string) (*nlu.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStyles struct {
	profile style.Profile
	saved   *style.Profile
}

func (f *fakeStyles) Get(userID int64) (style.Profile, error) {
	if f.profile.UserID == 0 {
		return style.DefaultProfile(userID), nil
	}
	return f.profile, nil
}

func (f *fakeStyles) Save(profile style.Profile) error {
	f.saved = &profile
	return nil
}

type fakeMemories struct {
	updates  []string
	recorded []string
	count    int
}

func (f *fakeMemories) Get(userID int64) (*memory.ConversationMemory, error) {
	return &memory.ConversationMemory{UserID: userID, MessageCount: f.count}, nil
}

func (f *fakeMemories) Update(userID int64, lastMessage, intent string) error {
	f.updates = append(f.updates, intent)
	f.count++
	return nil
}

func (f *fakeMemories) Record(userID int64, sender, message, reason string) error {
	f.recorded = append(f.recorded, sender+": "+message)
	return nil
}

func (f *fakeMemories) ShortHistory(userID int64, limit int) (string, error) {
	return strings.Join(f.recorded, "\n"), nil
}

type fakeSampleStore struct {
	samples map[int64]*clarify.Sample
	nextID  int64
}

func newFakeSampleStore() *fakeSampleStore {
	return &fakeSampleStore{samples: map[int64]*clarify.Sample{}, nextID: 1}
}

func (f *fakeSampleStore) Insert(userID int64, text, predictedIntent string, confidence float64) (*clarify.Sample, error) {
	s := &clarify.Sample{
		ID:              f.nextID,
		UserID:          userID,
		Text:            text,
		PredictedIntent: predictedIntent,
		Confidence:      confidence,
		Status:          clarify.StatusUnlabelled,
		CreatedAt:       time.Now(),
	}
	f.nextID++
	f.samples[s.ID] = s
	return s, nil
}

func (f *fakeSampleStore) GetByID(id int64) (*clarify.Sample, error) {
	return f.samples[id], nil
}

func (f *fakeSampleStore) UpdateStatus(id int64, status clarify.SampleStatus) error {
	f.samples[id].Status = status
	return nil
}

type recordingHandler struct {
	intents  []string
	lastText string
	reply    string
}

func (h *recordingHandler) CanHandle(intent string) bool {
	for _, name := range h.intents {
		if name == intent {
			return true
		}
	}
	return false
}

func (h *recordingHandler) Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	h.lastText = result.Text
	return h.reply, nil
}

type staticFallback struct{ reply string }

func (f *staticFallback) Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	return f.reply, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Chat.ConfidenceThreshold = 0.7
	cfg.Chat.HighRiskIntents = []string{"order_food", "book_taxi"}
	cfg.Chat.HistoryWindow = 30
	cfg.Chat.MaxMessageLength = 2000
	return cfg
}

type fixture struct {
	orch       *Orchestrator
	classifier *fakeClassifier
	memories   *fakeMemories
	samples    *fakeSampleStore
	handler    *recordingHandler
	machine    *clarify.Machine
	user       *models.User
}

func newFixture(classifier *fakeClassifier) *fixture {
	samples := newFakeSampleStore()
	machine := clarify.NewMachine(samples, clarify.NewDialogStates(), 15*time.Minute)
	memories := &fakeMemories{}
	handler := &recordingHandler{intents: []string{"order_food"}, reply: "Ordering that for you! 🍕"}
	registry := NewRegistry(&staticFallback{reply: "fallback"}, handler)
	orch := New(testConfig(), classifier, &fakeStyles{}, memories, machine, registry)
	return &fixture{
		orch:       orch,
		classifier: classifier,
		memories:   memories,
		samples:    samples,
		handler:    handler,
		machine:    machine,
		user:       &models.User{ID: 7, DisplayName: "Sam"},
	}
}

func TestEmptyMessage(t *testing.T) {
	f := newFixture(&fakeClassifier{})
	reply, err := f.orch.HandleMessage(context.Background(), f.user, "   ", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != emptyMessageReply {
		t.Fatalf("got %q", reply)
	}
	if f.classifier.calls != 0 {
		t.Fatal("classifier should not run on empty input")
	}
}

func TestNilUser(t *testing.T) {
	f := newFixture(&fakeClassifier{})
	if _, err := f.orch.HandleMessage(context.Background(), nil, "hi", nil); err == nil {
		t.Fatal("expected error for nil user")
	}
}

func TestLowConfidenceHighRiskAsksForConfirmation(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "get me a pizza maybe",
		Intent: &nlu.Intent{Name: "order_food", Confidence: 0.55},
	}})

	reply, err := f.orch.HandleMessage(context.Background(), f.user, "get me a pizza maybe", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "55.0%") {
		t.Fatalf("reply should quote confidence, got %q", reply)
	}
	if !strings.Contains(reply, "order food") {
		t.Fatalf("reply should name the intent in plain words, got %q", reply)
	}
	if !f.machine.Awaiting(f.user.ID) {
		t.Fatal("expected a pending clarification")
	}
	sample := f.samples.samples[1]
	if sample == nil || sample.Status != clarify.StatusUnlabelled {
		t.Fatalf("expected an unlabelled sample, got %+v", sample)
	}
	if f.handler.lastText != "" {
		t.Fatal("handler must not run before confirmation")
	}
}

func TestConfirmationReplaysOriginalMessage(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "get me a pizza maybe",
		Intent: &nlu.Intent{Name: "order_food", Confidence: 0.55},
	}})
	ctx := context.Background()

	if _, err := f.orch.HandleMessage(ctx, f.user, "get me a pizza maybe", nil); err != nil {
		t.Fatal(err)
	}
	reply, err := f.orch.HandleMessage(ctx, f.user, "yes", nil)
	if err != nil {
		t.Fatal(err)
	}

	if reply != f.handler.reply {
		t.Fatalf("got %q", reply)
	}
	if f.handler.lastText != "get me a pizza maybe" {
		t.Fatalf("handler should see the original text, got %q", f.handler.lastText)
	}
	if f.machine.Awaiting(f.user.ID) {
		t.Fatal("dialog should be idle after confirmation")
	}
	if f.samples.samples[1].Status != clarify.StatusLabelled {
		t.Fatalf("sample should be labelled, got %v", f.samples.samples[1].Status)
	}
	// The confirmation turn must not be classified as a new message.
	if f.classifier.calls != 1 {
		t.Fatalf("classifier ran %d times", f.classifier.calls)
	}
}

func TestRejectionSkipsSample(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "book something",
		Intent: &nlu.Intent{Name: "book_taxi", Confidence: 0.4},
	}})
	ctx := context.Background()

	if _, err := f.orch.HandleMessage(ctx, f.user, "book something", nil); err != nil {
		t.Fatal(err)
	}
	reply, err := f.orch.HandleMessage(ctx, f.user, "no", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != rejectedReply {
		t.Fatalf("got %q", reply)
	}
	if f.samples.samples[1].Status != clarify.StatusSkipped {
		t.Fatal("sample should be skipped")
	}
	if f.machine.Awaiting(f.user.ID) {
		t.Fatal("dialog should be idle after rejection")
	}
}

func TestInvalidAnswerKeepsWaiting(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "book something",
		Intent: &nlu.Intent{Name: "book_taxi", Confidence: 0.4},
	}})
	ctx := context.Background()

	if _, err := f.orch.HandleMessage(ctx, f.user, "book something", nil); err != nil {
		t.Fatal(err)
	}
	reply, err := f.orch.HandleMessage(ctx, f.user, "what do you mean", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "yes") {
		t.Fatalf("retry prompt should explain the options, got %q", reply)
	}
	if !f.machine.Awaiting(f.user.ID) {
		t.Fatal("dialog should still be waiting")
	}
	if f.samples.samples[1].Status != clarify.StatusUnlabelled {
		t.Fatal("sample must be untouched on an invalid answer")
	}
}

func TestClassifierErrorDoesNotAdvanceMemory(t *testing.T) {
	f := newFixture(&fakeClassifier{err: errors.New("connection refused")})
	reply, err := f.orch.HandleMessage(context.Background(), f.user, "hello there", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != classifierDownReply {
		t.Fatalf("got %q", reply)
	}
	if len(f.memories.updates) != 0 {
		t.Fatal("memory must not advance when the classifier is down")
	}
}

func TestNoIntentStillAdvancesMemory(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{Text: "zzz"}})
	reply, err := f.orch.HandleMessage(context.Background(), f.user, "zzz", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != noIntentReply {
		t.Fatalf("got %q", reply)
	}
	if len(f.memories.updates) != 1 || f.memories.updates[0] != "" {
		t.Fatalf("expected one memory update with empty intent, got %v", f.memories.updates)
	}
}

func TestConfidentIntentRoutesToHandler(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "order a pizza",
		Intent: &nlu.Intent{Name: "order_food", Confidence: 0.93},
	}})
	reply, err := f.orch.HandleMessage(context.Background(), f.user, "order a pizza", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != f.handler.reply {
		t.Fatalf("got %q", reply)
	}
	if f.machine.Awaiting(f.user.ID) {
		t.Fatal("no clarification expected at high confidence")
	}
}

func TestLowConfidenceLowRiskRoutesDirectly(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "hmm",
		Intent: &nlu.Intent{Name: "small_talk", Confidence: 0.3},
	}})
	reply, err := f.orch.HandleMessage(context.Background(), f.user, "hmm", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "fallback" {
		t.Fatalf("got %q", reply)
	}
	if f.machine.Awaiting(f.user.ID) {
		t.Fatal("low-risk intents are never confidence-gated")
	}
}

func TestResumeMessageDoesNotRerecordUserSide(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "order a pizza",
		Intent: &nlu.Intent{Name: "order_food", Confidence: 0.93},
	}})

	reply, err := f.orch.ResumeMessage(context.Background(), f.user, "order a pizza", nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply != f.handler.reply {
		t.Fatalf("got %q", reply)
	}

	var userLines, avaLines int
	for _, line := range f.memories.recorded {
		switch {
		case strings.HasPrefix(line, "user:"):
			userLines++
		case strings.HasPrefix(line, "ava:"):
			avaLines++
		}
	}
	if userLines != 0 {
		t.Fatalf("a replayed message is already in history, recorded %d more", userLines)
	}
	if avaLines != 1 {
		t.Fatalf("expected exactly one recorded reply, got %d", avaLines)
	}
}

type panickyHandler struct{}

func (panickyHandler) CanHandle(intent string) bool { return intent == "greet" }

func (panickyHandler) Handle(ctx context.Context, result *nlu.Result, user *models.User, hctx *HandlerContext) (string, error) {
	var m *memory.ConversationMemory
	_ = m.MessageCount // nil deref stands in for an arbitrary handler bug
	return "", nil
}

func TestHandlerPanicDegradesToGenericReply(t *testing.T) {
	registry := NewRegistry(&staticFallback{reply: "fallback"}, panickyHandler{})

	reply, err := registry.Route(context.Background(),
		&nlu.Result{Text: "hi", Intent: &nlu.Intent{Name: "greet"}},
		&models.User{ID: 1}, &HandlerContext{})
	if err != nil {
		t.Fatalf("panic must not surface as an error: %v", err)
	}
	if reply != handlerFumbleReply {
		t.Fatalf("got %q", reply)
	}
}

func TestCanceledMessageSuppressesRecording(t *testing.T) {
	f := newFixture(&fakeClassifier{result: &nlu.Result{
		Text:   "order a pizza",
		Intent: &nlu.Intent{Name: "order_food", Confidence: 0.93},
	}})
	before := len(f.memories.recorded)
	_, err := f.orch.HandleMessage(context.Background(), f.user, "order a pizza", func() bool { return true })
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range f.memories.recorded[before:] {
		if strings.HasPrefix(line, "ava:") {
			t.Fatal("superseded turn must not record a reply")
		}
	}
}
