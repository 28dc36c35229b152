// Package swarm implements the flock controller and the per-agent steering
// rule behind the swarm animation.
//
// A Flock is single-threaded: all of its methods, and every callback it hands
// to the Scheduler, must run on the host's update goroutine.
package swarm

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/spatial"
)

// Flock owns the agents, the shared target and the animation lifecycle.
type Flock struct {
	steering    Steering
	oscillation Oscillation
	scheduler   Scheduler
	input       InputSource
	sink        ErrorSink
	logger      *zap.Logger
	rng         *rand.Rand

	container    Container
	anchor       Anchor
	unbindAnchor func()
	unbindInput  func()

	agents    []*Agent
	neighbors []Neighbor
	target    r2.Point
	phase     Phase
	running   bool
	ticks     uint64
	frameID   FrameID
	timerID   TimerID
}

// Option configures a Flock.
type Option func(*Flock)

// WithSteering overrides DefaultSteering.
func WithSteering(s Steering) Option {
	return func(f *Flock) { f.steering = s }
}

// WithOscillation overrides DefaultOscillation.
func WithOscillation(o Oscillation) Option {
	return func(f *Flock) { f.oscillation = o }
}

// WithInput sets the pointer/touch source bound while the flock runs.
func WithInput(in InputSource) Option {
	return func(f *Flock) { f.input = in }
}

// WithErrorSink replaces the default sink, which logs.
func WithErrorSink(sink ErrorSink) Option {
	return func(f *Flock) { f.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flock) { f.logger = l }
}

// WithRand sets the random source used for placement and perturbation.
func WithRand(rng *rand.Rand) Option {
	return func(f *Flock) { f.rng = rng }
}

// NewFlock creates a flock driven by scheduler. It must be initialized before
// use.
func NewFlock(scheduler Scheduler, opts ...Option) *Flock {
	f := &Flock{
		steering:    DefaultSteering,
		oscillation: DefaultOscillation,
		scheduler:   scheduler,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if f.sink == nil {
		f.sink = func(err error) {
			f.logger.Error("Swarm animation stopped", zap.Error(err))
		}
	}
	return f
}

// Initialize binds the flock to its container and anchor, and wires anchor
// activation to Toggle. It can only succeed once.
func (f *Flock) Initialize(container Container, anchor Anchor) error {
	switch {
	case f.container != nil:
		return &InitializationError{Reason: "already initialized"}
	case container == nil:
		return &InitializationError{Reason: "missing container"}
	case anchor == nil:
		return &InitializationError{Reason: "missing anchor"}
	case f.scheduler == nil:
		return &InitializationError{Reason: "missing scheduler"}
	}
	f.container = container
	f.anchor = anchor
	f.unbindAnchor = anchor.OnActivate(f.Toggle)
	container.SetVisible(false)
	f.logger.Debug("Swarm initialized")
	return nil
}

// Populate creates count agents at random positions within the current bounds
// with random headings, and attaches their visuals to the container.
func (f *Flock) Populate(count int, width, height, speed float64) error {
	if f.container == nil {
		return ErrNotInitialized
	}
	if count < 0 {
		return fmt.Errorf("populate: negative count %d", count)
	}
	b := f.Bounds()
	for i := 0; i < count; i++ {
		pos := spatial.RandomPoint(f.rng, b)
		heading := f.rng.Float64() * 2 * math.Pi
		v := f.container.NewVisual(width, height)
		if err := f.Add(NewAgent(width, height, speed, pos, heading, v)); err != nil {
			return err
		}
	}
	f.logger.Info("Swarm populated",
		zap.Int("added", count),
		zap.Int("total", len(f.agents)),
	)
	return nil
}

// Add appends a to the flock and attaches its visual to the container.
func (f *Flock) Add(a *Agent) error {
	if f.container == nil {
		return ErrNotInitialized
	}
	if a.visual != nil {
		f.container.Attach(a.visual)
	}
	f.agents = append(f.agents, a)
	return nil
}

// SetTarget overwrites the shared steering target.
func (f *Flock) SetTarget(x, y float64) {
	f.target = r2.Point{X: x, Y: y}
}

// Start begins the update loop and the scatter/home cycle, binds pointer
// input and shows the container. It is a no-op when already running.
func (f *Flock) Start() error {
	if f.container == nil {
		return ErrNotInitialized
	}
	if f.running {
		return nil
	}
	f.running = true
	if f.input != nil {
		f.unbindInput = f.input.OnPress(f.SetTarget)
	}
	f.frameID = f.scheduler.RequestFrame(f.tick)
	f.home()
	f.container.SetVisible(true)
	f.logger.Info("Swarm started", zap.Int("agents", len(f.agents)))
	return nil
}

// Stop cancels the frame callback and the oscillation timer, unbinds input,
// clears the target and hides the container. It is a no-op when not running,
// and safe to call from the error sink or from inside a tick.
func (f *Flock) Stop() {
	if !f.running {
		return
	}
	f.running = false

	if f.frameID != 0 {
		f.scheduler.CancelFrame(f.frameID)
	}
	if f.timerID != 0 {
		f.scheduler.CancelTimer(f.timerID)
	}
	f.frameID, f.timerID = 0, 0

	if f.unbindInput != nil {
		f.unbindInput()
		f.unbindInput = nil
	}
	f.target = r2.Point{}
	f.phase = PhaseIdle
	f.container.SetVisible(false)
	f.logger.Info("Swarm stopped", zap.Uint64("ticks", f.ticks))
}

// Toggle stops a running flock and starts a stopped one.
func (f *Flock) Toggle() {
	if f.running {
		f.Stop()
		return
	}
	if err := f.Start(); err != nil {
		f.logger.Warn("Swarm toggle failed", zap.Error(err))
	}
}

// Teardown stops the flock and discards the population, detaching every
// visual. The flock stays bound to its container and can be repopulated.
func (f *Flock) Teardown() {
	f.Stop()
	if f.container != nil {
		for _, a := range f.agents {
			if a.visual != nil {
				f.container.Detach(a.visual)
			}
		}
	}
	f.agents = nil
	f.neighbors = nil
}

// Close tears the flock down and releases the anchor binding. The flock cannot
// be initialized again.
func (f *Flock) Close() {
	f.Teardown()
	if f.unbindAnchor != nil {
		f.unbindAnchor()
		f.unbindAnchor = nil
	}
}

// Running reports whether the update loop is active.
func (f *Flock) Running() bool { return f.running }

// Target returns the shared target.
func (f *Flock) Target() r2.Point { return f.target }

// Phase returns the current oscillation phase.
func (f *Flock) Phase() Phase { return f.phase }

// Ticks returns the number of completed ticks.
func (f *Flock) Ticks() uint64 { return f.ticks }

// Bounds queries the container's current size.
func (f *Flock) Bounds() spatial.Bounds {
	if f.container == nil {
		return spatial.Bounds{}
	}
	w, h := f.container.Size()
	return spatial.Bounds{Width: w, Height: h}
}

// Agents returns the agents in creation order.
func (f *Flock) Agents() []*Agent {
	out := make([]*Agent, len(f.agents))
	copy(out, f.agents)
	return out
}

// home targets the anchor centre and schedules a scatter.
func (f *Flock) home() {
	f.target = f.anchor.Center()
	f.phase = PhaseHome
	f.schedule(f.scatter)
}

// scatter moves the target away from the anchor and schedules a return home.
func (f *Flock) scatter() {
	f.target = f.oscillation.scatterTarget(f.rng, f.Bounds())
	f.phase = PhaseScatter
	f.schedule(f.home)
}

func (f *Flock) schedule(next func()) {
	if f.timerID != 0 {
		f.scheduler.CancelTimer(f.timerID)
	}
	d := f.oscillation.Duration(f.Bounds().Area())
	f.timerID = f.scheduler.AfterFunc(d, func() {
		f.timerID = 0
		if f.running {
			next()
		}
	})
}

// tick updates every agent and requests the next frame. A failing tick stops
// the flock and reports to the sink instead of propagating.
func (f *Flock) tick() {
	f.frameID = 0
	if !f.running {
		return
	}
	if err := f.step(); err != nil {
		f.Stop()
		f.sink(err)
		return
	}
	f.ticks++
	if f.running {
		f.frameID = f.scheduler.RequestFrame(f.tick)
	}
}

func (f *Flock) step() (err error) {
	current := -1
	defer func() {
		if r := recover(); r != nil {
			err = &TickError{Agent: current, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	// positions are snapshotted so every agent sees the same tick
	f.neighbors = f.neighbors[:0]
	for _, a := range f.agents {
		f.neighbors = append(f.neighbors, Neighbor{Agent: a, Pos: a.pos, Size: a.size})
	}
	view := &View{
		Bounds:    f.Bounds(),
		Target:    f.target,
		Neighbors: f.neighbors,
		Steering:  f.steering,
		Rand:      f.rng,
	}

	for i, a := range f.agents {
		current = i
		if _, err := a.Update(view); err != nil {
			return &TickError{Agent: i, Err: err}
		}
		if !a.finite() {
			return &TickError{Agent: i, Err: ErrNonFinite}
		}
	}
	return nil
}
