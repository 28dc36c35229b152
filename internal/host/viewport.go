package host

import (
	"sync"

	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

// Sprite is the in-memory visual handed to each agent. It keeps the last
// transform rendered.
type Sprite struct {
	Width, Height float64

	mu   sync.RWMutex
	last swarm.Transform
}

// Render implements swarm.Visual.
func (s *Sprite) Render(t swarm.Transform) error {
	s.mu.Lock()
	s.last = t
	s.mu.Unlock()
	return nil
}

// Last returns the most recent transform.
func (s *Sprite) Last() swarm.Transform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Snapshot is a point-in-time copy of a viewport.
type Snapshot struct {
	Width, Height float64
	Visible       bool
	Transforms    []swarm.Transform
}

// Viewport is a virtual render surface implementing swarm.Container. Its size
// can change at any time through Resize.
type Viewport struct {
	mu      sync.RWMutex
	width   float64
	height  float64
	visible bool
	sprites []*Sprite
}

// NewViewport creates a hidden viewport of the given size.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{width: width, height: height}
}

// Size implements swarm.Container.
func (v *Viewport) Size() (float64, float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

// Resize changes the reported size. Non-positive dimensions are ignored.
func (v *Viewport) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
}

// NewVisual implements swarm.Container.
func (v *Viewport) NewVisual(width, height float64) swarm.Visual {
	return &Sprite{Width: width, Height: height}
}

// Attach implements swarm.Container. Visuals not created by NewVisual are
// ignored.
func (v *Viewport) Attach(vis swarm.Visual) {
	s, ok := vis.(*Sprite)
	if !ok {
		return
	}
	v.mu.Lock()
	v.sprites = append(v.sprites, s)
	v.mu.Unlock()
}

// Detach implements swarm.Container.
func (v *Viewport) Detach(vis swarm.Visual) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, s := range v.sprites {
		if swarm.Visual(s) == vis {
			v.sprites = append(v.sprites[:i], v.sprites[i+1:]...)
			return
		}
	}
}

// SetVisible implements swarm.Container.
func (v *Viewport) SetVisible(visible bool) {
	v.mu.Lock()
	v.visible = visible
	v.mu.Unlock()
}

// Visible reports whether the viewport is shown.
func (v *Viewport) Visible() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible
}

// Len returns the number of attached sprites.
func (v *Viewport) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.sprites)
}

// Snapshot copies the size, visibility and every attached sprite's last
// transform in attach order.
func (v *Viewport) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	snap := Snapshot{
		Width:      v.width,
		Height:     v.height,
		Visible:    v.visible,
		Transforms: make([]swarm.Transform, len(v.sprites)),
	}
	for i, s := range v.sprites {
		snap.Transforms[i] = s.Last()
	}
	return snap
}
