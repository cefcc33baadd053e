package tools

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// NoteResult is what a note execution feeds back into the generator's action.
type NoteResult struct {
	Reply  string
	NoteID int64
}

// ExecuteCreateNote persists a note from generator parameters. The model
// frequently omits or mangles fields, so the body falls back from the stated
// content to the user's original message to recent context, and the title is
// derived from the body when missing.
func ExecuteCreateNote(db *sql.DB, userID int64, params map[string]interface{}, originalMessage, contextText string) (*NoteResult, error) {
	content := strings.TrimSpace(stringParam(params, "content"))
	titleRaw := strings.TrimSpace(stringParam(params, "title"))

	body := content
	if body == "" {
		body = originalMessage
	}
	if body == "" {
		body = strings.TrimSpace(contextText)
	}
	if body == "" {
		body = "Note created from chat."
	}

	title := titleRaw
	if title == "" {
		title = body
		if len(title) > 60 {
			title = title[:57] + "..."
		}
	}

	var noteID int64
	err := db.QueryRow(
		`INSERT INTO notes (user_id, title, body, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, title, body, time.Now(),
	).Scan(&noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return &NoteResult{
		Reply:  fmt.Sprintf("Created a note: %q.", title),
		NoteID: noteID,
	}, nil
}

func stringParam(params map[string]interface{}, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
