package swarm_test

import (
	"sort"
	"time"

	"github.com/golang/geo/r2"

	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

type fakeVisual struct {
	renders  []swarm.Transform
	err      error
	onRender func()
}

func (v *fakeVisual) Render(t swarm.Transform) error {
	v.renders = append(v.renders, t)
	if v.onRender != nil {
		v.onRender()
	}
	return v.err
}

type fakeContainer struct {
	w, h      float64
	visible   bool
	attached  []swarm.Visual
	detached  []swarm.Visual
	sizeCalls int
}

func (c *fakeContainer) Size() (float64, float64) {
	c.sizeCalls++
	return c.w, c.h
}

func (c *fakeContainer) NewVisual(w, h float64) swarm.Visual {
	return &fakeVisual{}
}

func (c *fakeContainer) Attach(v swarm.Visual) {
	c.attached = append(c.attached, v)
}

func (c *fakeContainer) Detach(v swarm.Visual) {
	c.detached = append(c.detached, v)
}

func (c *fakeContainer) SetVisible(v bool) {
	c.visible = v
}

type fakeAnchor struct {
	center   r2.Point
	handlers []func()
}

func (a *fakeAnchor) Center() r2.Point { return a.center }

func (a *fakeAnchor) OnActivate(fn func()) func() {
	a.handlers = append(a.handlers, fn)
	return func() { a.handlers = nil }
}

func (a *fakeAnchor) activate() {
	for _, h := range a.handlers {
		h()
	}
}

type fakeInput struct {
	handler func(x, y float64)
}

func (in *fakeInput) OnPress(fn func(x, y float64)) func() {
	in.handler = fn
	return func() { in.handler = nil }
}

func (in *fakeInput) press(x, y float64) {
	if in.handler != nil {
		in.handler(x, y)
	}
}

type pendingTimer struct {
	id  swarm.TimerID
	due time.Duration
	fn  func()
}

// fakeScheduler runs frames on Step and timers on Advance, all on the test
// goroutine.
type fakeScheduler struct {
	nextID          uint64
	now             time.Duration
	frames          map[swarm.FrameID]func()
	timers          map[swarm.TimerID]pendingTimer
	delays          []time.Duration
	cancelledFrames int
	cancelledTimers int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		frames: make(map[swarm.FrameID]func()),
		timers: make(map[swarm.TimerID]pendingTimer),
	}
}

func (s *fakeScheduler) RequestFrame(fn func()) swarm.FrameID {
	s.nextID++
	id := swarm.FrameID(s.nextID)
	s.frames[id] = fn
	return id
}

func (s *fakeScheduler) CancelFrame(id swarm.FrameID) {
	if _, ok := s.frames[id]; ok {
		s.cancelledFrames++
	}
	delete(s.frames, id)
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) swarm.TimerID {
	s.nextID++
	id := swarm.TimerID(s.nextID)
	s.timers[id] = pendingTimer{id: id, due: s.now + d, fn: fn}
	s.delays = append(s.delays, d)
	return id
}

func (s *fakeScheduler) CancelTimer(id swarm.TimerID) {
	if _, ok := s.timers[id]; ok {
		s.cancelledTimers++
	}
	delete(s.timers, id)
}

// Step runs every pending frame callback once.
func (s *fakeScheduler) Step() {
	ids := make([]swarm.FrameID, 0, len(s.frames))
	for id := range s.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn, ok := s.frames[id]
		if !ok {
			continue
		}
		delete(s.frames, id)
		fn()
	}
}

// Advance moves the clock forward and fires due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	end := s.now + d
	for {
		var next *pendingTimer
		for _, t := range s.timers {
			t := t
			if t.due <= end && (next == nil || t.due < next.due || (t.due == next.due && t.id < next.id)) {
				next = &t
			}
		}
		if next == nil {
			break
		}
		s.now = next.due
		delete(s.timers, next.id)
		next.fn()
	}
	s.now = end
}
