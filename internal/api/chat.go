package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/avachat/internal/api/auth"
	"github.com/avachat/internal/config"
	"github.com/avachat/internal/llm"
	"github.com/avachat/internal/scheduler"
	"github.com/avachat/pkg/models"
)

// MessageScheduler accepts a message for processing and returns a handle to
// wait on. Submitting supersedes the user's earlier unanswered message.
type MessageScheduler interface {
	Submit(userID int64, message string) *scheduler.Item
	Resubmit(userID int64, message string) *scheduler.Item
	HasPending(userID int64) bool
}

// HistoryStore pages through a user's conversation history, newest first.
type HistoryStore interface {
	GetPage(userID int64, offset, limit int) ([]models.HistoryEntry, error)
}

// ChatHandlers serves the chat endpoint and history.
type ChatHandlers struct {
	cfg       *config.Config
	scheduler MessageScheduler
	history   HistoryStore
}

func NewChatHandlers(cfg *config.Config, sched MessageScheduler, history HistoryStore) *ChatHandlers {
	return &ChatHandlers{cfg: cfg, scheduler: sched, history: history}
}

type chatRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// PostMessage accepts one message and waits for Ava's reply. A newer message
// from the same user supersedes this one; the superseded call gets 409.
func (h *ChatHandlers) PostMessage(c echo.Context) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "no users exist yet; create one with 'ava user create'",
		})
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}
	if max := h.cfg.Chat.MaxMessageLength; max > 0 && len(text) > max {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message too long"})
	}

	item := h.scheduler.Submit(user.ID, text)
	reply, err := item.Wait(c.Request().Context())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrSuperseded):
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "superseded by a newer message",
			})
		case errors.Is(err, llm.ErrBadModelOutput):
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "the language model returned something unusable",
			})
		default:
			log.Error().Err(err).Int64("user_id", user.ID).Msg("chat turn failed")
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "something went wrong handling that message",
			})
		}
	}

	return c.JSON(http.StatusOK, chatResponse{Reply: reply})
}

// GetHistory returns a page of the user's conversation, newest first.
func (h *ChatHandlers) GetHistory(c echo.Context) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "no users exist yet",
		})
	}

	h.ensurePendingReply(user.ID)

	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.history.GetPage(user.ID, offset, limit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to load history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"offset":  offset,
		"limit":   limit,
	})
}

// ensurePendingReply re-enqueues the user's last message when it never got an
// answer, so a history poll after a dropped connection still produces one.
// The reply lands in history and shows up on a later poll.
func (h *ChatHandlers) ensurePendingReply(userID int64) {
	if h.scheduler == nil || h.scheduler.HasPending(userID) {
		return
	}

	entries, err := h.history.GetPage(userID, 0, 1)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to check for an unanswered message")
		return
	}
	if len(entries) == 0 || entries[0].Sender != "user" {
		return
	}

	log.Info().Int64("user_id", userID).Msg("re-enqueueing unanswered message")
	h.scheduler.Resubmit(userID, entries[0].Message)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
