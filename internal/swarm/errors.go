package swarm

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization matches every *InitializationError.
	ErrInitialization = errors.New("swarm: initialization failed")
	// ErrNotInitialized is returned by operations that need a bound container.
	ErrNotInitialized = errors.New("swarm: flock not initialized")
	// ErrTickFailed matches every *TickError.
	ErrTickFailed = errors.New("swarm: tick failed")
	// ErrNonFinite reports an agent whose position became NaN or infinite.
	ErrNonFinite = errors.New("swarm: non-finite agent position")
)

// InitializationError is returned by Initialize when the flock cannot bind to
// its host.
type InitializationError struct {
	Reason string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("swarm: initialize: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInitialization) hold.
func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// TickError wraps whatever aborted a tick. Agent is the index of the agent
// being updated, or -1 when the failure happened outside an agent update.
type TickError struct {
	Agent int
	Err   error
}

func (e *TickError) Error() string {
	if e.Agent < 0 {
		return fmt.Sprintf("swarm: tick: %v", e.Err)
	}
	return fmt.Sprintf("swarm: tick: agent %d: %v", e.Agent, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTickFailed) hold.
func (e *TickError) Is(target error) bool {
	return target == ErrTickFailed
}
