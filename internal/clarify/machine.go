package clarify

import (
	"fmt"
	"strings"
	"time"
)

// AnswerClass is what a clarification answer was interpreted as.
type AnswerClass int

const (
	AnswerInvalid AnswerClass = iota
	AnswerYes
	AnswerNo
	AnswerDismiss
)

var yesAnswers = []string{"yes", "y", "yeah", "yep", "correct", "right"}
var noAnswers = []string{"no", "n", "nope", "wrong"}
var dismissAnswers = []string{"never mind", "nvm", "forget it", "ignore", "leave it"}

// ClassifyAnswer buckets a raw message into yes/no/dismiss/invalid.
func ClassifyAnswer(text string) AnswerClass {
	answer := strings.ToLower(strings.TrimSpace(text))
	for _, a := range yesAnswers {
		if answer == a {
			return AnswerYes
		}
	}
	for _, a := range noAnswers {
		if answer == a {
			return AnswerNo
		}
	}
	for _, a := range dismissAnswers {
		if answer == a {
			return AnswerDismiss
		}
	}
	return AnswerInvalid
}

// OutcomeKind names the result of resolving a clarification answer.
type OutcomeKind int

const (
	// OutcomeConfirmed means the user said yes: re-route the sample's
	// original text with its predicted intent at full confidence.
	OutcomeConfirmed OutcomeKind = iota
	// OutcomeRejected means the user said no: sample skipped.
	OutcomeRejected
	// OutcomeDismissed means the user dropped the request entirely.
	OutcomeDismissed
	// OutcomeRetry means the answer was unintelligible; state unchanged.
	OutcomeRetry
	// OutcomeMissing means the referenced sample vanished; state reset.
	OutcomeMissing
	// OutcomeExpired means the sample outlived its answer window.
	OutcomeExpired
)

// Outcome is the resolved result, with the sample when one still applies.
type Outcome struct {
	Kind   OutcomeKind
	Sample *Sample
}

// SampleStore is the persistence the machine needs; *Store implements it.
type SampleStore interface {
	Insert(userID int64, text, predictedIntent string, confidence float64) (*Sample, error)
	GetByID(id int64) (*Sample, error)
	UpdateStatus(id int64, status SampleStatus) error
}

// Machine drives the clarification state transitions.
type Machine struct {
	store  SampleStore
	states *DialogStates
	ttl    time.Duration
}

// NewMachine wires the machine. ttl bounds how long a sample stays
// answerable; zero disables expiry.
func NewMachine(store SampleStore, states *DialogStates, ttl time.Duration) *Machine {
	return &Machine{store: store, states: states, ttl: ttl}
}

// Awaiting reports whether the user owes a clarification answer.
func (m *Machine) Awaiting(userID int64) bool {
	state := m.states.Get(userID)
	return state.Mode == ModeAwaitingConfirmation && state.SampleID != 0
}

// Begin persists an unlabelled sample and moves the user to awaiting.
func (m *Machine) Begin(userID int64, text, predictedIntent string, confidence float64) (*Sample, error) {
	sample, err := m.store.Insert(userID, text, predictedIntent, confidence)
	if err != nil {
		return nil, err
	}
	m.states.SetAwaiting(userID, sample.ID)
	return sample, nil
}

// Resolve interprets text as the answer to the user's pending clarification.
// Only yes/no/dismiss consume the sample; anything else leaves the state and
// the sample untouched.
func (m *Machine) Resolve(userID int64, text string) (*Outcome, error) {
	state := m.states.Get(userID)
	if state.Mode != ModeAwaitingConfirmation || state.SampleID == 0 {
		return nil, fmt.Errorf("no pending clarification for user %d", userID)
	}

	sample, err := m.store.GetByID(state.SampleID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		m.states.Clear(userID)
		return &Outcome{Kind: OutcomeMissing}, nil
	}

	if m.ttl > 0 && time.Since(sample.CreatedAt) > m.ttl {
		if err := m.store.UpdateStatus(sample.ID, StatusSkipped); err != nil {
			return nil, err
		}
		m.states.Clear(userID)
		return &Outcome{Kind: OutcomeExpired, Sample: sample}, nil
	}

	switch ClassifyAnswer(text) {
	case AnswerYes:
		if err := m.store.UpdateStatus(sample.ID, StatusLabelled); err != nil {
			return nil, err
		}
		m.states.Clear(userID)
		sample.Status = StatusLabelled
		return &Outcome{Kind: OutcomeConfirmed, Sample: sample}, nil
	case AnswerNo:
		if err := m.store.UpdateStatus(sample.ID, StatusSkipped); err != nil {
			return nil, err
		}
		m.states.Clear(userID)
		sample.Status = StatusSkipped
		return &Outcome{Kind: OutcomeRejected, Sample: sample}, nil
	case AnswerDismiss:
		if err := m.store.UpdateStatus(sample.ID, StatusSkipped); err != nil {
			return nil, err
		}
		m.states.Clear(userID)
		sample.Status = StatusSkipped
		return &Outcome{Kind: OutcomeDismissed, Sample: sample}, nil
	default:
		return &Outcome{Kind: OutcomeRetry, Sample: sample}, nil
	}
}
