package swarm

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"

	"github.com/tedvkremer/swarmag-website/internal/spatial"
)

// Neighbor is a sibling as seen at the start of a tick.
type Neighbor struct {
	Agent *Agent
	Pos   r2.Point
	Size  float64
}

// View is the read-only flock state an agent updates against.
type View struct {
	Bounds    spatial.Bounds
	Target    r2.Point
	Neighbors []Neighbor // every agent in the flock, self included
	Steering  Steering
	Rand      *rand.Rand
}

// targetSet reports whether the shared target is active. A target on either
// axis line counts as unset, the origin being the cleared value.
func (v *View) targetSet() bool {
	return v.Target.X != 0 && v.Target.Y != 0
}

// Agent is one flocking entity.
type Agent struct {
	pos     r2.Point
	heading float64
	vel     r2.Point
	size    float64
	speed   float64
	visual  Visual
	last    Transform
}

// NewAgent creates an agent of the given sprite dimensions. Its size is the
// larger dimension.
func NewAgent(width, height, speed float64, pos r2.Point, heading float64, visual Visual) *Agent {
	return &Agent{
		pos:     pos,
		heading: heading,
		vel:     headingVector(heading),
		size:    math.Max(width, height),
		speed:   speed,
		visual:  visual,
	}
}

// Position returns the current position.
func (a *Agent) Position() r2.Point { return a.pos }

// Heading returns the facing angle in radians.
func (a *Agent) Heading() float64 { return a.heading }

// Velocity returns the unit velocity derived from the heading.
func (a *Agent) Velocity() r2.Point { return a.vel }

// Size returns max(width, height).
func (a *Agent) Size() float64 { return a.size }

// Speed returns the displacement per tick.
func (a *Agent) Speed() float64 { return a.speed }

// Visual returns the render handle.
func (a *Agent) Visual() Visual { return a.visual }

// Transform returns the last emitted render transform.
func (a *Agent) Transform() Transform { return a.last }

func (a *Agent) finite() bool {
	return !math.IsNaN(a.pos.X) && !math.IsNaN(a.pos.Y) &&
		!math.IsInf(a.pos.X, 0) && !math.IsInf(a.pos.Y, 0)
}

// Update runs one steering step against v and renders the result. It returns
// false when there is no other agent to steer against, in which case nothing
// changes. Numeric failures are not checked here.
func (a *Agent) Update(v *View) (bool, error) {
	closest, ok := a.closest(v.Neighbors)
	if !ok {
		return false, nil
	}
	st := v.Steering

	toClosest := closest.Pos.Sub(a.pos)
	dirClosest, ok := unit(toClosest)
	if !ok {
		dirClosest = randomUnit(v.Rand)
	}

	// heading: the target when it is set and close enough, else the neighbour
	heading := dirClosest
	if v.targetSet() {
		if spatial.Distance2D(v.Target, a.pos) <= st.InfluenceRadius {
			if heading, ok = unit(v.Target.Sub(a.pos)); !ok {
				heading = randomUnit(v.Rand)
			}
		}
	}

	var blend r2.Point
	dist := toClosest.Norm() - closest.Size
	switch {
	case dist > st.MaxComfortable:
		blend = heading.Add(dirClosest)
	case dist < st.MinComfortable:
		blend = dirClosest.Mul(-1)
	default:
		blend = heading
	}

	// opposite vectors cancel out: hold course this tick
	if desired, ok := unit(blend); ok {
		a.heading += signedAngle(a.vel, desired) * st.TurnRate
	}
	a.vel = headingVector(a.heading)

	a.move(v.Bounds)
	a.last = Transform{
		X:        a.pos.X,
		Y:        a.pos.Y,
		Rotation: a.heading*180/math.Pi - 90,
	}
	if a.visual == nil {
		return true, nil
	}
	return true, a.visual.Render(a.last)
}

// move advances along the velocity and wraps around the bounds. The margins
// differ per edge so sprites leave the screen fully before reappearing.
func (a *Agent) move(b spatial.Bounds) {
	a.pos = a.pos.Add(a.vel.Mul(a.speed))

	if a.pos.X < -a.size*2 {
		a.pos.X = b.Width
	} else if a.pos.X > b.Width+a.size {
		a.pos.X = -a.size
	}
	if a.pos.Y < -a.size*3 {
		a.pos.Y = b.Height
	} else if a.pos.Y > b.Height+a.size {
		a.pos.Y = -a.size
	}
}

// closest finds the nearest other agent by squared distance minus the
// neighbour's squared size, so larger neighbours count as nearer.
func (a *Agent) closest(ns []Neighbor) (Neighbor, bool) {
	best := math.Inf(1)
	var found Neighbor
	ok := false
	for _, n := range ns {
		if n.Agent == a {
			continue
		}
		d := n.Pos.Sub(a.pos)
		dl := d.Dot(d) - n.Size*n.Size
		if !ok || dl < best {
			best = dl
			found = n
			ok = true
		}
	}
	return found, ok
}

// randomUnit returns a random direction, used where a direction is undefined.
func randomUnit(rng *rand.Rand) r2.Point {
	var a float64
	if rng != nil {
		a = rng.Float64() * 2 * math.Pi
	} else {
		a = rand.Float64() * 2 * math.Pi
	}
	return headingVector(a)
}
