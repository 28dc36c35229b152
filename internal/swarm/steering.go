package swarm

import (
	"math"

	"github.com/golang/geo/r2"
)

// Steering holds the tuning of the per-agent update rule.
type Steering struct {
	TurnRate        float64 // fraction of the angular difference applied per tick
	MinComfortable  float64 // below this adjusted distance an agent flees its neighbour
	MaxComfortable  float64 // above this adjusted distance an agent closes on its neighbour
	InfluenceRadius float64 // max distance at which the shared target attracts
}

// DefaultSteering matches the tuning the swarm was designed with.
var DefaultSteering = Steering{
	TurnRate:        0.05,
	MinComfortable:  6,
	MaxComfortable:  30,
	InfluenceRadius: 300,
}

// signedAngle returns the signed angle that rotates unit vector from onto unit
// vector to. The cross product gives the sign and the dot product picks the
// half-plane, so the result stays continuous across ±π.
func signedAngle(from, to r2.Point) float64 {
	cross := from.Cross(to)
	diff := math.Abs(math.Asin(math.Max(-1, math.Min(1, cross))))
	if from.Dot(to) <= 0 {
		diff = math.Pi - diff
	}
	if cross > 0 {
		return diff
	}
	return -diff
}

// unit returns v normalized and whether v had non-zero length.
func unit(v r2.Point) (r2.Point, bool) {
	n := v.Norm()
	if n == 0 {
		return v, false
	}
	return v.Mul(1 / n), true
}

// headingVector returns the unit vector for angle a.
func headingVector(a float64) r2.Point {
	sin, cos := math.Sincos(a)
	return r2.Point{X: cos, Y: sin}
}
