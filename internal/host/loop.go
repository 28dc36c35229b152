// Package host drives a swarm.Flock on a server: a single-goroutine event loop
// with a frame clock and timers, and in-memory stand-ins for the container,
// anchor and pointer that a browser would otherwise provide.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("host: loop stopped")

// Loop serialises frame callbacks, timer callbacks and posted commands onto
// the goroutine running Run. It implements swarm.Scheduler.
type Loop struct {
	inbox     chan func()
	frameRate int
	logger    *zap.Logger

	mu     sync.Mutex
	nextID uint64
	frames map[swarm.FrameID]func()
	order  []swarm.FrameID
	timers map[swarm.TimerID]*time.Timer

	frame   uint64
	onFrame []func(frame uint64)
	quit    chan struct{}
}

// NewLoop creates a loop ticking at frameRate frames per second.
func NewLoop(frameRate int, logger *zap.Logger) *Loop {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Loop{
		inbox:     make(chan func(), 256),
		frameRate: frameRate,
		logger:    logger,
		frames:    make(map[swarm.FrameID]func()),
		timers:    make(map[swarm.TimerID]*time.Timer),
		quit:      make(chan struct{}),
	}
}

// FrameRate returns the configured frames per second.
func (l *Loop) FrameRate() int { return l.frameRate }

// Frame returns the number of frames run so far. Call it on the loop.
func (l *Loop) Frame() uint64 { return l.frame }

// OnFrame registers fn to run on the loop after every frame. Register before
// Run.
func (l *Loop) OnFrame(fn func(frame uint64)) {
	l.onFrame = append(l.onFrame, fn)
}

// Run processes frames and commands until ctx is done. It must be called
// once.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.frameRate))
	defer ticker.Stop()
	defer close(l.quit)
	defer l.stopTimers()

	l.logger.Info("Loop running", zap.Int("frameRate", l.frameRate))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Loop stopped", zap.Uint64("frames", l.frame))
			return nil
		case fn := <-l.inbox:
			fn()
		case <-ticker.C:
			l.runFrame()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.quit }

// Post queues fn to run on the loop. It returns false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(done)
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestFrame implements swarm.Scheduler.
func (l *Loop) RequestFrame(fn func()) swarm.FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := swarm.FrameID(l.nextID)
	l.frames[id] = fn
	l.order = append(l.order, id)
	return id
}

// CancelFrame implements swarm.Scheduler.
func (l *Loop) CancelFrame(id swarm.FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.frames, id)
}

// AfterFunc implements swarm.Scheduler. fn runs on the loop, not on the timer
// goroutine.
func (l *Loop) AfterFunc(d time.Duration, fn func()) swarm.TimerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := swarm.TimerID(l.nextID)
	l.timers[id] = time.AfterFunc(d, func() {
		l.Post(func() {
			l.mu.Lock()
			_, live := l.timers[id]
			delete(l.timers, id)
			l.mu.Unlock()
			if live {
				fn()
			}
		})
	})
	return id
}

// CancelTimer implements swarm.Scheduler.
func (l *Loop) CancelTimer(id swarm.TimerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *Loop) runFrame() {
	l.mu.Lock()
	order := l.order
	l.order = nil
	l.mu.Unlock()

	for _, id := range order {
		l.mu.Lock()
		fn, ok := l.frames[id]
		delete(l.frames, id)
		l.mu.Unlock()
		if ok {
			fn()
		}
	}
	l.frame++
	for _, fn := range l.onFrame {
		fn(l.frame)
	}
}

func (l *Loop) stopTimers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
