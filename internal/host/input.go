package host

import (
	"sort"
	"sync"

	"github.com/golang/geo/r2"
)

type registry[F any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]F
}

func (r *registry[F]) add(fn F) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fns == nil {
		r.fns = make(map[int]F)
	}
	r.nextID++
	id := r.nextID
	r.fns[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.fns, id)
		r.mu.Unlock()
	}
}

func (r *registry[F]) snapshot() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.fns))
	for id := range r.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]F, len(ids))
	for i, id := range ids {
		out[i] = r.fns[id]
	}
	return out
}

func (r *registry[F]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

// Anchor is a fixed rectangle on the page, such as a logo, whose centre is
// the flock's home. It implements swarm.Anchor.
type Anchor struct {
	X, Y, Width, Height float64

	handlers registry[func()]
}

// NewAnchor creates an anchor covering the given rectangle.
func NewAnchor(x, y, width, height float64) *Anchor {
	return &Anchor{X: x, Y: y, Width: width, Height: height}
}

// Center implements swarm.Anchor.
func (a *Anchor) Center() r2.Point {
	return r2.Point{X: a.X + a.Width/2, Y: a.Y + a.Height/2}
}

// OnActivate implements swarm.Anchor.
func (a *Anchor) OnActivate(fn func()) func() {
	return a.handlers.add(fn)
}

// Activate fires every bound handler, as a click on the anchor would.
func (a *Anchor) Activate() {
	for _, fn := range a.handlers.snapshot() {
		fn()
	}
}

// Bound returns the number of bound handlers.
func (a *Anchor) Bound() int { return a.handlers.len() }

// Pointer delivers presses to bound handlers. It implements
// swarm.InputSource.
type Pointer struct {
	handlers registry[func(x, y float64)]
}

// OnPress implements swarm.InputSource.
func (p *Pointer) OnPress(fn func(x, y float64)) func() {
	return p.handlers.add(fn)
}

// Press fires every bound handler with page coordinates x, y.
func (p *Pointer) Press(x, y float64) {
	for _, fn := range p.handlers.snapshot() {
		fn(x, y)
	}
}

// Bound returns the number of bound handlers.
func (p *Pointer) Bound() int { return p.handlers.len() }
