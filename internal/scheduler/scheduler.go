// Package scheduler admits chat messages for processing. It guarantees at
// most one outstanding message per user (a newer message supersedes older
// ones) and at most one actively-processing message across the whole service,
// since the generator backend cannot serve concurrent requests.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSuperseded is delivered to a waiter whose message was displaced by a
// newer one from the same user.
var ErrSuperseded = errors.New("message superseded by a newer one")

// Result is what a waiter receives for an admitted message.
type Result struct {
	Reply string
	Err   error
}

// Item is one admitted message. Processing code must poll Canceled before
// each expensive step; cancellation is cooperative, not preemptive.
type Item struct {
	ID        uuid.UUID
	UserID    int64
	Message   string
	CreatedAt time.Time
	// Replay marks a message already recorded in history, re-enqueued
	// because its first processing never answered. Processing must not
	// record it again.
	Replay bool

	canceled  atomic.Bool
	delivered bool // guarded by the scheduler mutex
	done      chan Result
}

// Canceled reports whether a newer message displaced this one.
func (it *Item) Canceled() bool {
	return it.canceled.Load()
}

// Wait blocks until the item resolves to a reply or a cancellation signal.
func (it *Item) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-it.done:
		return result.Reply, result.Err
	}
}

// ProcessFunc runs one admitted item to completion and returns the reply.
type ProcessFunc func(ctx context.Context, item *Item) (string, error)

// Scheduler is the admission queue.
type Scheduler struct {
	mu       sync.Mutex
	queue    []*Item
	active   map[*Item]struct{}
	slotBusy bool
	process  ProcessFunc
}

// New creates a scheduler around a processing function.
func New(process ProcessFunc) *Scheduler {
	return &Scheduler{
		active:  make(map[*Item]struct{}),
		process: process,
	}
}

// Submit cancels the user's queued and active items, then enqueues the new
// message and kicks the queue. The returned item resolves via Wait.
func (s *Scheduler) Submit(userID int64, message string) *Item {
	return s.enqueue(userID, message, false)
}

// Resubmit re-enqueues a message whose first processing never answered, for
// example because the client dropped the connection or the process restarted.
func (s *Scheduler) Resubmit(userID int64, message string) *Item {
	return s.enqueue(userID, message, true)
}

func (s *Scheduler) enqueue(userID int64, message string, replay bool) *Item {
	item := &Item{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
		Replay:    replay,
		done:      make(chan Result, 1),
	}

	s.mu.Lock()
	s.cancelActiveLocked(userID)
	s.cancelQueuedLocked(userID)
	s.queue = append(s.queue, item)
	s.mu.Unlock()

	s.drain()
	return item
}

// HasPending reports whether the user has a queued or active non-canceled item.
func (s *Scheduler) HasPending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.queue {
		if item.UserID == userID && !item.Canceled() {
			return true
		}
	}
	for item := range s.active {
		if item.UserID == userID && !item.Canceled() {
			return true
		}
	}
	return false
}

func (s *Scheduler) cancelQueuedLocked(userID int64) {
	kept := s.queue[:0]
	for _, item := range s.queue {
		if item.UserID != userID {
			kept = append(kept, item)
			continue
		}
		item.canceled.Store(true)
		s.deliverLocked(item, Result{Err: ErrSuperseded})
	}
	s.queue = kept
}

func (s *Scheduler) cancelActiveLocked(userID int64) {
	for item := range s.active {
		if item.UserID != userID || item.Canceled() {
			continue
		}
		item.canceled.Store(true)
		// The canceled item keeps running until its next cancellation
		// check, but the slot frees now so the successor can start.
		s.slotBusy = false
		s.deliverLocked(item, Result{Err: ErrSuperseded})
		log.Debug().
			Str("item_id", item.ID.String()).
			Int64("user_id", userID).
			Msg("superseded active message")
	}
}

// deliverLocked resolves the item's waiter exactly once.
func (s *Scheduler) deliverLocked(item *Item, result Result) {
	if item.delivered {
		return
	}
	item.delivered = true
	item.done <- result
}

// drain starts the oldest non-canceled queued item if the slot is free.
func (s *Scheduler) drain() {
	s.mu.Lock()
	var next *Item
	if !s.slotBusy {
		for len(s.queue) > 0 {
			candidate := s.queue[0]
			s.queue = s.queue[1:]
			if candidate.Canceled() {
				continue
			}
			next = candidate
			break
		}
		if next != nil {
			s.slotBusy = true
			s.active[next] = struct{}{}
		}
	}
	s.mu.Unlock()

	if next != nil {
		go s.run(next)
	}
}

func (s *Scheduler) run(item *Item) {
	reply, err := s.processGuarded(item)

	s.mu.Lock()
	delete(s.active, item)
	if item.Canceled() {
		// Supersession already resolved the waiter and freed the slot.
		s.mu.Unlock()
		s.drain()
		return
	}
	s.slotBusy = false
	s.deliverLocked(item, Result{Reply: reply, Err: err})
	s.mu.Unlock()

	s.drain()
}

// processGuarded runs the processing function and converts a panic into an
// error. A bug in a handler or store must cost one turn, not the process;
// the slot release and re-drain in run still happen on the panic path.
func (s *Scheduler) processGuarded(item *Item) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("item_id", item.ID.String()).
				Int64("user_id", item.UserID).
				Bytes("stack", debug.Stack()).
				Msg("message processing panicked")
			reply = ""
			err = fmt.Errorf("message processing panicked: %v", r)
		}
	}()
	return s.process(context.Background(), item)
}
