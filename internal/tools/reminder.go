package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ReminderScheduler queues delivery of a reminder at its due time.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, reminderID, userID int64, dueAt time.Time) error
}

// ReminderResult is what a reminder execution feeds back into the action.
type ReminderResult struct {
	Reply      string
	ReminderID int64
	DueAt      time.Time
}

// dueAtFormats are tried in order when parsing the model's due_at value.
var dueAtFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ExecuteCreateReminder persists a reminder and schedules its delivery. A
// missing or unparseable due_at falls back to one hour from now rather than
// failing the whole turn.
func ExecuteCreateReminder(ctx context.Context, db *sql.DB, scheduler ReminderScheduler, userID int64, params map[string]interface{}, originalMessage string) (*ReminderResult, error) {
	content := strings.TrimSpace(stringParam(params, "content"))
	if content == "" {
		content = originalMessage
	}
	if content == "" {
		content = "Reminder from chat."
	}

	dueAt := parseDueAt(stringParam(params, "due_at"))

	var reminderID int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO reminders (user_id, text, due_at, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, content, dueAt, time.Now(),
	).Scan(&reminderID)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	if scheduler != nil {
		if err := scheduler.ScheduleReminder(ctx, reminderID, userID, dueAt); err != nil {
			return nil, fmt.Errorf("failed to schedule reminder: %w", err)
		}
	}

	return &ReminderResult{
		Reply:      fmt.Sprintf("Got it, I'll remind you at %s.", dueAt.Format("15:04 on Mon 2 Jan")),
		ReminderID: reminderID,
		DueAt:      dueAt,
	}, nil
}

func parseDueAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueAtFormats {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return time.Now().Add(1 * time.Hour)
}
