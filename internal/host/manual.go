package host

import (
	"sort"
	"time"

	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

type manualTimer struct {
	id  swarm.TimerID
	due time.Duration
	fn  func()
}

// Manual is a deterministic swarm.Scheduler for batch runs: frames advance on
// Step and virtual time advances by one frame period per step.
type Manual struct {
	period  time.Duration
	now     time.Duration
	nextID  uint64
	frame   uint64
	frames  map[swarm.FrameID]func()
	timers  map[swarm.TimerID]manualTimer
	onFrame []func(frame uint64)
}

// NewManual creates a manual scheduler whose frames are frameRate per virtual
// second.
func NewManual(frameRate int) *Manual {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Manual{
		period: time.Second / time.Duration(frameRate),
		frames: make(map[swarm.FrameID]func()),
		timers: make(map[swarm.TimerID]manualTimer),
	}
}

// Now returns the virtual time elapsed.
func (m *Manual) Now() time.Duration { return m.now }

// Frame returns the number of frames stepped.
func (m *Manual) Frame() uint64 { return m.frame }

// Pending reports the number of queued frame callbacks and timers.
func (m *Manual) Pending() (frames, timers int) {
	return len(m.frames), len(m.timers)
}

// OnFrame registers fn to run after every step.
func (m *Manual) OnFrame(fn func(frame uint64)) {
	m.onFrame = append(m.onFrame, fn)
}

// RequestFrame implements swarm.Scheduler.
func (m *Manual) RequestFrame(fn func()) swarm.FrameID {
	m.nextID++
	id := swarm.FrameID(m.nextID)
	m.frames[id] = fn
	return id
}

// CancelFrame implements swarm.Scheduler.
func (m *Manual) CancelFrame(id swarm.FrameID) {
	delete(m.frames, id)
}

// AfterFunc implements swarm.Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) swarm.TimerID {
	m.nextID++
	id := swarm.TimerID(m.nextID)
	m.timers[id] = manualTimer{id: id, due: m.now + d, fn: fn}
	return id
}

// CancelTimer implements swarm.Scheduler.
func (m *Manual) CancelTimer(id swarm.TimerID) {
	delete(m.timers, id)
}

// Step advances virtual time by one frame period, fires due timers, then runs
// the frame callbacks that were pending when the step began.
func (m *Manual) Step() {
	m.Advance(m.period)

	ids := make([]swarm.FrameID, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if fn, ok := m.frames[id]; ok {
			delete(m.frames, id)
			fn()
		}
	}
	m.frame++
	for _, fn := range m.onFrame {
		fn(m.frame)
	}
}

// Advance moves virtual time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	end := m.now + d
	for {
		next, ok := m.nextDue(end)
		if !ok {
			break
		}
		delete(m.timers, next.id)
		m.now = next.due
		next.fn()
	}
	m.now = end
}

func (m *Manual) nextDue(end time.Duration) (manualTimer, bool) {
	var best manualTimer
	found := false
	for _, t := range m.timers {
		if t.due > end {
			continue
		}
		if !found || t.due < best.due || (t.due == best.due && t.id < best.id) {
			best = t
			found = true
		}
	}
	return best, found
}
