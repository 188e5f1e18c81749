// Package persist bridges in-memory task/document state and the record
// store.
//
// Two independently scheduled controllers own the state: TaskController
// (tasks plus settings, 300ms debounce) and DocumentController
// (documents, 500ms debounce keyed by document id). Mutations update
// memory synchronously and schedule coalesced writes; storage failures
// are logged and the session continues memory-only. A shared Coordinator
// suspends all debounced writes while an import replaces the store.
package persist

import (
	"sync"
	"time"
)

// FlushFunc receives the latest value scheduled for a key once its quiet
// period elapses. It runs on a timer goroutine (or the Flush caller).
type FlushFunc func(key string, value any)

// Scheduler coalesces writes per key: scheduling a key restarts its
// timer and replaces its pending value, so only the most recent value
// for each key is ever flushed. Pending entries form a map, not a queue.
type Scheduler struct {
	delay time.Duration
	flush FlushFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]any
	stopped bool
}

// NewScheduler creates a scheduler with the given quiet period.
func NewScheduler(delay time.Duration, flush FlushFunc) *Scheduler {
	return &Scheduler{
		delay:   delay,
		flush:   flush,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]any),
	}
}

// Schedule records value as the pending write for key and restarts the
// key's timer. Any previously pending value for the key is discarded.
func (s *Scheduler) Schedule(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.pending[key] = value
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(s.delay, func() {
		s.fire(key)
	})
}

// Cancel drops the pending write for key without flushing it. Used when
// the entity is deleted so a stale save can't resurrect it.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	delete(s.pending, key)
}

// Flush cancels all timers and runs every pending write immediately on
// the calling goroutine. Used before export and teardown so the store
// reflects the latest memory state.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	pending := s.pending
	s.pending = make(map[string]any)
	s.mu.Unlock()

	for key, value := range pending {
		s.flush(key, value)
	}
}

// Stop cancels all timers and discards pending writes without flushing.
// The scheduler accepts no further work afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.pending = make(map[string]any)
}

// Reset re-arms a stopped scheduler. Pending writes dropped by Stop stay
// dropped; new work is accepted again. Used by Reload so the reload
// itself can't be mistaken for an edit that needs saving.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// PendingCount returns the number of keys with a scheduled write.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fire flushes one key when its timer elapses. A concurrent Cancel or
// Flush may have already claimed the entry; then this is a no-op.
func (s *Scheduler) fire(key string) {
	s.mu.Lock()
	value, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if ok {
		s.flush(key, value)
	}
}
