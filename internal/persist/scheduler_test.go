package persist

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flushRecorder collects flush callback invocations.
type flushRecorder struct {
	mu    sync.Mutex
	calls []struct {
		key   string
		value any
	}
}

func (r *flushRecorder) flush(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		key   string
		value any
	}{key, value})
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *flushRecorder) last() (string, any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return "", nil
	}
	c := r.calls[len(r.calls)-1]
	return c.key, c.value
}

func TestSchedulerCoalesces(t *testing.T) {
	rec := &flushRecorder{}
	s := NewScheduler(30*time.Millisecond, rec.flush)
	defer s.Stop()

	for i := 0; i < 5; i++ {
		s.Schedule("tasks", i)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	require.Equal(t, 1, rec.count(), "rapid schedules within the quiet period must coalesce into one flush")
	key, value := rec.last()
	assert.Equal(t, "tasks", key)
	assert.Equal(t, 4, value, "only the most recent value survives")
}

func TestSchedulerIndependentKeys(t *testing.T) {
	rec := &flushRecorder{}
	s := NewScheduler(20*time.Millisecond, rec.flush)
	defer s.Stop()

	s.Schedule("a", 1)
	s.Schedule("b", 2)

	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, 2, rec.count(), "distinct keys flush independently")
}

func TestSchedulerCancel(t *testing.T) {
	rec := &flushRecorder{}
	s := NewScheduler(20*time.Millisecond, rec.flush)
	defer s.Stop()

	s.Schedule("doomed", 1)
	s.Cancel("doomed")

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, rec.count(), "cancelled entries must never flush")
}

func TestSchedulerFlushImmediate(t *testing.T) {
	rec := &flushRecorder{}
	s := NewScheduler(time.Hour, rec.flush)
	defer s.Stop()

	s.Schedule("a", 1)
	s.Schedule("b", 2)
	s.Flush()

	require.Equal(t, 2, rec.count(), "Flush must run pending writes synchronously")

	// The timers were cancelled; nothing fires later.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count(), "no duplicate flush after explicit Flush")
}

func TestSchedulerStopDiscards(t *testing.T) {
	rec := &flushRecorder{}
	s := NewScheduler(20*time.Millisecond, rec.flush)

	s.Schedule("a", 1)
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	// Stopped schedulers refuse new work until Reset.
	s.Schedule("b", 2)
	assert.Equal(t, 0, s.PendingCount())

	s.Reset()
	s.Schedule("c", 3)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "Reset re-arms the scheduler")
	s.Stop()
}
