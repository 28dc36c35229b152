package swarm

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r2"

	"github.com/tedvkremer/swarmag-website/internal/spatial"
)

// Phase is the state of the scatter/home oscillation.
type Phase int

const (
	PhaseIdle    Phase = iota
	PhaseHome          // target is the anchor centre
	PhaseScatter       // target is decorrelated from the anchor
)

func (p Phase) String() string {
	switch p {
	case PhaseHome:
		return "home"
	case PhaseScatter:
		return "scatter"
	default:
		return "idle"
	}
}

// ScatterPolicy decides where the target goes in the scatter phase.
type ScatterPolicy int

const (
	// ScatterOrigin clears the target to the origin, which agents treat as
	// unset, so the swarm loosens around its own neighbours.
	ScatterOrigin ScatterPolicy = iota
	// ScatterRandom moves the target to a fresh random point within bounds.
	ScatterRandom
)

func (p ScatterPolicy) String() string {
	switch p {
	case ScatterRandom:
		return "random"
	default:
		return "origin"
	}
}

// ParseScatterPolicy parses "origin" or "random".
func ParseScatterPolicy(s string) (ScatterPolicy, error) {
	switch s {
	case "", "origin":
		return ScatterOrigin, nil
	case "random":
		return ScatterRandom, nil
	default:
		return ScatterOrigin, fmt.Errorf("unknown scatter policy %q (use 'origin' or 'random')", s)
	}
}

// Oscillation calibrates the scatter/home cycle. Phase durations grow linearly
// with viewport area between the low-end and high-end screen sizes.
type Oscillation struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	LowEnd      spatial.Bounds
	HighEnd     spatial.Bounds
	Scatter     ScatterPolicy
}

// DefaultOscillation spans 5s on a small phone to 15s on a large desktop.
var DefaultOscillation = Oscillation{
	MinDuration: 5 * time.Second,
	MaxDuration: 15 * time.Second,
	LowEnd:      spatial.Bounds{Width: 320, Height: 695},
	HighEnd:     spatial.Bounds{Width: 2560, Height: 1245},
	Scatter:     ScatterOrigin,
}

// Duration returns the phase length for a viewport of the given area, rounded
// to the millisecond. Areas outside the calibration range are clamped first.
func (o Oscillation) Duration(area float64) time.Duration {
	minArea, maxArea := o.LowEnd.Area(), o.HighEnd.Area()
	if maxArea <= minArea {
		return o.MinDuration
	}
	clamped := math.Max(minArea, math.Min(maxArea, area))
	frac := (clamped - minArea) / (maxArea - minArea)
	secs := frac*(o.MaxDuration-o.MinDuration).Seconds() + o.MinDuration.Seconds()
	return time.Duration(math.Round(secs*1000)) * time.Millisecond
}

// scatterTarget picks the scatter point for the configured policy.
func (o Oscillation) scatterTarget(rng *rand.Rand, b spatial.Bounds) r2.Point {
	if o.Scatter == ScatterRandom {
		return spatial.RandomPoint(rng, b)
	}
	return r2.Point{}
}
