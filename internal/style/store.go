package style

import (
	"database/sql"
	"fmt"
	"time"
)

// Store persists per-user style profiles
type Store struct {
	db *sql.DB
}

// NewStore creates a new style profile store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored profile for a user, or the default profile if the
// user has never messaged before.
func (s *Store) Get(userID int64) (Profile, error) {
	profile := Profile{UserID: userID}
	err := s.db.QueryRow(`
		SELECT formality, emoji_usage, exclamation_level, sentence_length, playfulness
		FROM style_profile
		WHERE user_id = $1
	`, userID).Scan(
		&profile.Formality, &profile.EmojiUsage, &profile.ExclamationLevel,
		&profile.SentenceLength, &profile.Playfulness,
	)

	if err == sql.ErrNoRows {
		return DefaultProfile(userID), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get style profile: %w", err)
	}

	return profile, nil
}

// Save upserts the profile. The write carries the final values of a turn, so
// it is idempotent and needs no surrounding transaction.
func (s *Store) Save(profile Profile) error {
	_, err := s.db.Exec(`
		INSERT INTO style_profile
			(user_id, formality, emoji_usage, exclamation_level, sentence_length, playfulness, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			formality = EXCLUDED.formality,
			emoji_usage = EXCLUDED.emoji_usage,
			exclamation_level = EXCLUDED.exclamation_level,
			sentence_length = EXCLUDED.sentence_length,
			playfulness = EXCLUDED.playfulness,
			updated_at = EXCLUDED.updated_at
	`, profile.UserID, profile.Formality, profile.EmojiUsage, profile.ExclamationLevel,
		profile.SentenceLength, profile.Playfulness, time.Now())

	if err != nil {
		return fmt.Errorf("failed to save style profile: %w", err)
	}
	return nil
}
