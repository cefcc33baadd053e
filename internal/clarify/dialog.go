package clarify

import "sync"

// DialogMode is the per-user clarification cursor.
type DialogMode string

const (
	ModeIdle                 DialogMode = "idle"
	ModeAwaitingConfirmation DialogMode = "awaiting_confirmation"
)

// DialogState points an awaiting user at their unresolved sample.
type DialogState struct {
	Mode     DialogMode
	SampleID int64
}

// DialogStates holds per-user clarification state. The scheduler admits one
// turn per user at a time, but states are read from HTTP handlers too, so
// access stays locked.
type DialogStates struct {
	mu     sync.RWMutex
	states map[int64]DialogState
}

// NewDialogStates creates an empty state service.
func NewDialogStates() *DialogStates {
	return &DialogStates{states: make(map[int64]DialogState)}
}

// Get returns the user's state, idle by default.
func (d *DialogStates) Get(userID int64) DialogState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if state, ok := d.states[userID]; ok {
		return state
	}
	return DialogState{Mode: ModeIdle}
}

// SetAwaiting records that the user owes an answer for the given sample.
func (d *DialogStates) SetAwaiting(userID, sampleID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[userID] = DialogState{Mode: ModeAwaitingConfirmation, SampleID: sampleID}
}

// Clear resets the user to idle.
func (d *DialogStates) Clear(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[userID] = DialogState{Mode: ModeIdle}
}
