// Package local stores recorded flock frames on the local disk.
package local

import (
	"errors"

	"github.com/tedvkremer/swarmag-website/internal/protocol"
)

// ErrNotFound is returned when no frame is stored under the requested number.
var ErrNotFound = errors.New("frame not found")

// FrameStore is an ordered, single-node store of recorded frames keyed by
// frame number.
type FrameStore interface {
	// Init opens/creates the underlying store.
	Init() error
	// Close flushes and closes the store.
	Close() error
	// Put stores fr under fr.Frame, replacing any earlier recording.
	Put(fr protocol.Frame) error
	// Get returns the frame recorded under n.
	Get(n uint64) (protocol.Frame, error)
	// Range returns frames numbered from..to inclusive, in order. A to of zero
	// means no upper bound.
	Range(from, to uint64) ([]protocol.Frame, error)
	// Truncate deletes every stored frame.
	Truncate() error
}
