// Package spatial handles viewport bounds, random placement and geometry helpers.
package spatial

import (
	"math/rand"

	"github.com/golang/geo/r2"
)

// Bounds is the rendered size of a viewport in pixels.
type Bounds struct {
	Width, Height float64
}

// Area returns Width*Height.
func (b Bounds) Area() float64 {
	return b.Width * b.Height
}

// RandomPoint generates a uniformly random point within bounds.
func RandomPoint(rng *rand.Rand, b Bounds) r2.Point {
	return r2.Point{
		X: rng.Float64() * b.Width,
		Y: rng.Float64() * b.Height,
	}
}

// Distance2D returns the Euclidean distance between a and b.
func Distance2D(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}
