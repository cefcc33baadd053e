package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avachat/internal/config"
	"github.com/avachat/internal/llm"
	"github.com/avachat/internal/scheduler"
	"github.com/avachat/pkg/models"
)

type fakeHistory struct {
	entries []models.HistoryEntry
}

func (f *fakeHistory) GetPage(userID int64, offset, limit int) ([]models.HistoryEntry, error) {
	if offset >= len(f.entries) {
		return []models.HistoryEntry{}, nil
	}
	end := offset + limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return f.entries[offset:end], nil
}

func chatConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Chat.MaxMessageLength = 100
	return cfg
}

func newChatContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.user", &models.User{ID: 1, DisplayName: "Sam"})
	return c, rec
}

func TestPostMessageReturnsReply(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		return "Hey " + item.Message, nil
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	c, rec := newChatContext(t, `{"text":"there"}`)
	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "Hey there" {
		t.Fatalf("got %q", resp.Reply)
	}
}

func TestPostMessageRejectsEmptyText(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		t.Fatal("scheduler must not run")
		return "", nil
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	c, rec := newChatContext(t, `{"text":"   "}`)
	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPostMessageRejectsOversizedText(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		return "", nil
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	long := strings.Repeat("a", 200)
	c, rec := newChatContext(t, `{"text":"`+long+`"}`)
	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPostMessageWithoutUser(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		return "", nil
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPostMessageSupersededConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		if item.Message == "first" {
			close(started)
			<-release
			return "never delivered", nil
		}
		return "done", nil
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	first := make(chan int, 1)
	go func() {
		c, rec := newChatContext(t, `{"text":"first"}`)
		_ = h.PostMessage(c)
		first <- rec.Code
	}()

	<-started
	// The second message supersedes the first while it is in flight.
	item := sched.Submit(1, "second")
	if code := <-first; code != http.StatusConflict {
		t.Fatalf("superseded request got status %d", code)
	}
	close(release)
	if _, err := item.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPostMessageBadModelOutput(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		return "", llm.ErrBadModelOutput
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	c, rec := newChatContext(t, `{"text":"hi"}`)
	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestPostMessageGenericFailure(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		return "", errors.New("db down")
	})
	h := NewChatHandlers(chatConfig(), sched, &fakeHistory{})

	c, rec := newChatContext(t, `{"text":"hi"}`)
	if err := h.PostMessage(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestGetHistoryReEnqueuesUnansweredMessage(t *testing.T) {
	processed := make(chan *scheduler.Item, 1)
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		processed <- item
		return "better late than never", nil
	})
	history := &fakeHistory{entries: []models.HistoryEntry{
		{ID: 2, Sender: "user", Message: "order a pizza"},
		{ID: 1, Sender: "ava", Message: "welcome"},
	}}
	h := NewChatHandlers(chatConfig(), sched, history)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.user", &models.User{ID: 1})

	if err := h.GetHistory(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	select {
	case item := <-processed:
		if item.Message != "order a pizza" {
			t.Fatalf("re-enqueued %q", item.Message)
		}
		if !item.Replay {
			t.Fatal("re-enqueued item must be marked as a replay")
		}
	case <-time.After(time.Second):
		t.Fatal("unanswered message was not re-enqueued")
	}
}

func TestGetHistoryLeavesAnsweredConversationAlone(t *testing.T) {
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		t.Error("nothing should be re-enqueued")
		return "", nil
	})
	history := &fakeHistory{entries: []models.HistoryEntry{
		{ID: 2, Sender: "ava", Message: "done!"},
		{ID: 1, Sender: "user", Message: "order a pizza"},
	}}
	h := NewChatHandlers(chatConfig(), sched, history)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.user", &models.User{ID: 1})

	if err := h.GetHistory(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestGetHistorySkipsReEnqueueWhilePending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	submits := make(chan string, 2)
	sched := scheduler.New(func(ctx context.Context, item *scheduler.Item) (string, error) {
		submits <- item.Message
		if item.Message == "in flight" {
			close(started)
			<-release
		}
		return "ok", nil
	})
	history := &fakeHistory{entries: []models.HistoryEntry{
		{ID: 1, Sender: "user", Message: "in flight"},
	}}
	h := NewChatHandlers(chatConfig(), sched, history)

	item := sched.Submit(1, "in flight")
	<-started

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.user", &models.User{ID: 1})

	if err := h.GetHistory(c); err != nil {
		t.Fatal(err)
	}
	close(release)
	if _, err := item.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	<-submits // the in-flight message itself
	select {
	case msg := <-submits:
		t.Fatalf("unexpected re-enqueue of %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGetHistoryPaging(t *testing.T) {
	history := &fakeHistory{entries: []models.HistoryEntry{
		{ID: 3, Sender: "ava", Message: "hi!"},
		{ID: 2, Sender: "user", Message: "hi"},
		{ID: 1, Sender: "ava", Message: "welcome"},
	}}
	h := NewChatHandlers(chatConfig(), nil, history)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?offset=1&limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("auth.user", &models.User{ID: 1})

	if err := h.GetHistory(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Entries []models.HistoryEntry `json:"entries"`
		Offset  int                   `json:"offset"`
		Limit   int                   `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].ID != 2 {
		t.Fatalf("unexpected page: %+v", resp.Entries)
	}
}
