// Package memory persists per-user conversation state: the rolling summary
// used by prompts and the full message history shown in the chat UI.
package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avachat/pkg/models"
)

// ConversationMemory is the rolling per-user dialogue summary.
type ConversationMemory struct {
	UserID          int64
	LastMessage     string
	LastIntent      string
	LastInteraction time.Time
	MessageCount    int
}

// Store wraps the conversation tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get fetches a user's conversation memory, zero-valued on first contact.
func (s *Store) Get(userID int64) (*ConversationMemory, error) {
	mem := &ConversationMemory{UserID: userID}
	err := s.db.QueryRow(
		`SELECT last_message, last_intent, last_interaction, message_count
		 FROM conversation_memory WHERE user_id = $1`,
		userID,
	).Scan(&mem.LastMessage, &mem.LastIntent, &mem.LastInteraction, &mem.MessageCount)
	if err == sql.ErrNoRows {
		return mem, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation memory: %w", err)
	}
	return mem, nil
}

// Update upserts the memory after a resolved turn, bumping the message count.
// intent may be empty when the classifier recognised nothing.
func (s *Store) Update(userID int64, lastMessage, intent string) error {
	_, err := s.db.Exec(
		`INSERT INTO conversation_memory (user_id, last_message, last_intent, last_interaction, message_count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (user_id) DO UPDATE SET
		   last_message = EXCLUDED.last_message,
		   last_intent = EXCLUDED.last_intent,
		   last_interaction = EXCLUDED.last_interaction,
		   message_count = conversation_memory.message_count + 1`,
		userID, lastMessage, intent, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation memory: %w", err)
	}
	return nil
}

// Record appends one message to the history log.
func (s *Store) Record(userID int64, sender, message, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO conversation_history (user_id, sender, message, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, sender, message, reason, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// GetRecent returns the newest limit messages in chronological order.
func (s *Store) GetRecent(userID int64, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, sender, message, reason, created_at
		 FROM conversation_history WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// GetPage returns a page of history, newest first, for the history API.
func (s *Store) GetPage(userID int64, offset, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, sender, message, reason, created_at
		 FROM conversation_history WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history page: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// ShortHistory renders recent messages as prompt context, one line each.
func (s *Store) ShortHistory(userID int64, limit int) (string, error) {
	entries, err := s.GetRecent(userID, limit)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Sender, e.Message)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func scanHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Sender, &e.Message, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}
