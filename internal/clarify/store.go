// Package clarify implements the confidence-gated clarification dialogue:
// uncertain classifications are persisted and confirmed with the user before
// anything with side effects runs.
package clarify

import (
	"database/sql"
	"fmt"
	"time"
)

// SampleStatus tracks what happened to a low-confidence classification.
type SampleStatus string

const (
	StatusUnlabelled SampleStatus = "unlabelled"
	StatusLabelled   SampleStatus = "labelled"
	StatusSkipped    SampleStatus = "skipped"
)

// Sample is a classification too uncertain to act on, held until the user
// confirms or rejects it. Resolved samples are never mutated again.
type Sample struct {
	ID              int64
	UserID          int64
	Text            string
	PredictedIntent string
	Confidence      float64
	Status          SampleStatus
	CreatedAt       time.Time
}

// Store persists low-confidence samples.
type Store struct {
	db *sql.DB
}

// NewStore creates a sample store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert records a new unlabelled sample.
func (s *Store) Insert(userID int64, text, predictedIntent string, confidence float64) (*Sample, error) {
	sample := &Sample{
		UserID:          userID,
		Text:            text,
		PredictedIntent: predictedIntent,
		Confidence:      confidence,
		Status:          StatusUnlabelled,
		CreatedAt:       time.Now(),
	}
	err := s.db.QueryRow(
		`INSERT INTO low_confidence_samples (user_id, text, predicted_intent, confidence, created_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sample.UserID, sample.Text, sample.PredictedIntent, sample.Confidence, sample.CreatedAt, sample.Status,
	).Scan(&sample.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert low-confidence sample: %w", err)
	}
	return sample, nil
}

// GetByID fetches a sample, nil when it no longer exists.
func (s *Store) GetByID(id int64) (*Sample, error) {
	sample := &Sample{}
	err := s.db.QueryRow(
		`SELECT id, user_id, text, predicted_intent, confidence, created_at, status
		 FROM low_confidence_samples WHERE id = $1`,
		id,
	).Scan(&sample.ID, &sample.UserID, &sample.Text, &sample.PredictedIntent,
		&sample.Confidence, &sample.CreatedAt, &sample.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get low-confidence sample: %w", err)
	}
	return sample, nil
}

// UpdateStatus marks a sample labelled or skipped.
func (s *Store) UpdateStatus(id int64, status SampleStatus) error {
	_, err := s.db.Exec(
		`UPDATE low_confidence_samples SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update sample status: %w", err)
	}
	return nil
}
