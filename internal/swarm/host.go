package swarm

import (
	"time"

	"github.com/golang/geo/r2"
)

// Transform is the render state emitted by an agent after each update.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"r"` // degrees, sprites point up at zero
}

// Visual is an opaque per-agent render handle. The flock attaches and detaches
// visuals but never inspects them.
type Visual interface {
	Render(t Transform) error
}

// Container is the host surface the flock is sized against and draws into.
type Container interface {
	// Size returns the current rendered width and height.
	Size() (width, height float64)
	// NewVisual creates a visual handle for an agent of the given dimensions.
	NewVisual(width, height float64) Visual
	Attach(v Visual)
	Detach(v Visual)
	// SetVisible fades the container in or out.
	SetVisible(visible bool)
}

// Anchor is the element whose centre is the home target. Activating it toggles
// the flock.
type Anchor interface {
	Center() r2.Point
	OnActivate(fn func()) (unbind func())
}

// InputSource delivers page coordinates of pointer presses and touch starts.
type InputSource interface {
	OnPress(fn func(x, y float64)) (unbind func())
}

// FrameID identifies a requested frame callback. Zero is never issued.
type FrameID uint64

// TimerID identifies a pending timer. Zero is never issued.
type TimerID uint64

// Scheduler runs callbacks on the host's single update goroutine.
type Scheduler interface {
	// RequestFrame runs fn once, as soon as the host is ready to render again.
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) TimerID
	CancelTimer(id TimerID)
}

// ErrorSink receives tick failures.
type ErrorSink func(err error)
