package host

import (
	"github.com/tedvkremer/swarmag-website/internal/protocol"
	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

// Capture builds the wire frame for frame number n from the flock and the
// viewport it renders into. Call it on the loop goroutine.
func Capture(n uint64, f *swarm.Flock, v *Viewport) protocol.Frame {
	snap := v.Snapshot()
	target := f.Target()
	fr := protocol.Frame{
		Frame:   n,
		Visible: snap.Visible,
		Phase:   f.Phase().String(),
		Width:   snap.Width,
		Height:  snap.Height,
		Target:  protocol.Point{X: target.X, Y: target.Y},
		Agents:  make([]protocol.AgentSnapshot, len(snap.Transforms)),
	}
	for i, t := range snap.Transforms {
		fr.Agents[i] = protocol.AgentSnapshot{X: t.X, Y: t.Y, R: t.Rotation}
	}
	return fr
}
