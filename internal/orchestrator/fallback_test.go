package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/avachat/internal/llm"
	"github.com/avachat/internal/nlu"
	"github.com/avachat/pkg/models"
)

type fakeDecider struct {
	action *llm.Action
	err    error
	calls  int
}

func (f *fakeDecider) Decide(ctx context.Context, message, shortHistory string) (*llm.Action, error) {
	f.calls++
	return f.action, f.err
}

func TestFallbackReturnsChatReply(t *testing.T) {
	fb := NewEngineFallback(&fakeDecider{action: &llm.Action{
		Mode:  llm.ModeChat,
		Tool:  "NONE",
		Reply: "sure thing!",
	}}, nil, nil)

	reply, err := fb.Handle(context.Background(), &nlu.Result{Text: "hi"}, &models.User{ID: 1}, &HandlerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "sure thing!" {
		t.Fatalf("got %q", reply)
	}
}

type deciderFunc func(ctx context.Context, message, shortHistory string) (*llm.Action, error)

func (f deciderFunc) Decide(ctx context.Context, message, shortHistory string) (*llm.Action, error) {
	return f(ctx, message, shortHistory)
}

func TestFallbackSuppressesToolWhenCanceledMidGeneration(t *testing.T) {
	canceled := false
	fb := NewEngineFallback(deciderFunc(func(ctx context.Context, message, shortHistory string) (*llm.Action, error) {
		// Supersession arrives while the generator is thinking.
		canceled = true
		return &llm.Action{
			Mode: llm.ModeTool,
			Tool: "CREATE_NOTE",
			Parameters: map[string]interface{}{
				"title": "should never land",
			},
		}, nil
	}), nil, nil)

	hctx := &HandlerContext{Canceled: func() bool { return canceled }}
	reply, err := fb.Handle(context.Background(), &nlu.Result{Text: "note it"}, &models.User{ID: 1}, hctx)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "" {
		t.Fatalf("canceled turn must not produce a reply, got %q", reply)
	}
}

func TestFallbackSkipsGeneratorWhenCanceled(t *testing.T) {
	decider := &fakeDecider{action: &llm.Action{Mode: llm.ModeChat, Reply: "never seen"}}
	fb := NewEngineFallback(decider, nil, nil)

	hctx := &HandlerContext{Canceled: func() bool { return true }}
	reply, err := fb.Handle(context.Background(), &nlu.Result{Text: "hi"}, &models.User{ID: 1}, hctx)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "" {
		t.Fatalf("canceled turn must not produce a reply, got %q", reply)
	}
	if decider.calls != 0 {
		t.Fatal("superseded message must not occupy the generator")
	}
}

func TestFallbackConversationalTools(t *testing.T) {
	fb := NewEngineFallback(&fakeDecider{action: &llm.Action{
		Mode:  llm.ModeTool,
		Tool:  "ORDER_FOOD",
		Reply: "One pizza coming up! 🍕",
	}}, nil, nil)

	reply, err := fb.Handle(context.Background(), &nlu.Result{Text: "pizza please"}, &models.User{ID: 1}, &HandlerContext{})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "One pizza coming up! 🍕" {
		t.Fatalf("got %q", reply)
	}
}

func TestFallbackPropagatesDecisionError(t *testing.T) {
	fb := NewEngineFallback(&fakeDecider{err: llm.ErrBadModelOutput}, nil, nil)

	_, err := fb.Handle(context.Background(), &nlu.Result{Text: "???"}, &models.User{ID: 1}, &HandlerContext{})
	if !errors.Is(err, llm.ErrBadModelOutput) {
		t.Fatalf("expected ErrBadModelOutput, got %v", err)
	}
}
