package persist

import (
	"fmt"
	"sync"
)

// ImportState is the coordinator's explicit state machine.
type ImportState int

const (
	// ImportIdle means autosave writes proceed normally.
	ImportIdle ImportState = iota
	// ImportRunning means a replace-all import holds the store; any
	// debounced write that fires now must be discarded, not deferred.
	ImportRunning
)

// Coordinator guards the import critical section against concurrent
// autosave. It is an injected object shared by the import flow and the
// controllers, so tests can instantiate independent coordinators.
type Coordinator struct {
	mu    sync.Mutex
	state ImportState
}

// NewCoordinator creates a coordinator in the idle state.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Begin enters the importing state. Fails if an import is already
// running.
func (c *Coordinator) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ImportRunning {
		return fmt.Errorf("import already in progress")
	}
	c.state = ImportRunning
	return nil
}

// End returns to the idle state so normal autosave resumes. Safe to call
// when already idle.
func (c *Coordinator) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ImportIdle
}

// Importing reports whether an import currently holds the store.
// Debounced write callbacks consult this at fire time.
func (c *Coordinator) Importing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == ImportRunning
}
