package swarm_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

type harness struct {
	sched     *fakeScheduler
	container *fakeContainer
	anchor    *fakeAnchor
	input     *fakeInput
	errs      []error
	flock     *swarm.Flock
}

func newHarness(t *testing.T, opts ...swarm.Option) *harness {
	t.Helper()
	h := &harness{
		sched:     newFakeScheduler(),
		container: &fakeContainer{w: 1280, h: 720},
		anchor:    &fakeAnchor{center: r2.Point{X: 640, Y: 100}},
		input:     &fakeInput{},
	}
	opts = append([]swarm.Option{
		swarm.WithInput(h.input),
		swarm.WithRand(rand.New(rand.NewSource(1))),
		swarm.WithErrorSink(func(err error) { h.errs = append(h.errs, err) }),
	}, opts...)
	h.flock = swarm.NewFlock(h.sched, opts...)
	require.NoError(t, h.flock.Initialize(h.container, h.anchor))
	return h
}

func TestInitializeMissingContainer(t *testing.T) {
	f := swarm.NewFlock(newFakeScheduler())
	err := f.Initialize(nil, &fakeAnchor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, swarm.ErrInitialization))

	var ie *swarm.InitializationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "missing container", ie.Reason)
}

func TestInitializeMissingAnchor(t *testing.T) {
	f := swarm.NewFlock(newFakeScheduler())
	err := f.Initialize(&fakeContainer{}, nil)
	assert.ErrorIs(t, err, swarm.ErrInitialization)
}

func TestInitializeTwice(t *testing.T) {
	h := newHarness(t)
	err := h.flock.Initialize(&fakeContainer{}, &fakeAnchor{})
	assert.ErrorIs(t, err, swarm.ErrInitialization)
	assert.Len(t, h.anchor.handlers, 1)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	f := swarm.NewFlock(newFakeScheduler())
	assert.ErrorIs(t, f.Populate(3, 10, 10, 3), swarm.ErrNotInitialized)
	assert.ErrorIs(t, f.Start(), swarm.ErrNotInitialized)
	assert.NotPanics(t, f.Stop)
	assert.False(t, f.Running())
}

func TestPopulate(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(30, 10, 8, 3))

	agents := h.flock.Agents()
	require.Len(t, agents, 30)
	assert.Len(t, h.container.attached, 30)
	for i, a := range agents {
		p := a.Position()
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.Less(t, p.X, 1280.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.Less(t, p.Y, 720.0)
		assert.GreaterOrEqual(t, a.Heading(), 0.0)
		assert.Less(t, a.Heading(), 2*math.Pi)
		assert.Equal(t, 10.0, a.Size())
		assert.Same(t, h.container.attached[i], a.Visual())
	}

	assert.Error(t, h.flock.Populate(-1, 10, 10, 3))
}

func TestAgentsReturnsCopy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(2, 10, 10, 3))
	agents := h.flock.Agents()
	agents[0] = nil
	assert.NotNil(t, h.flock.Agents()[0])
}

func TestBoundsFollowsContainer(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1280.0, h.flock.Bounds().Width)
	h.container.w, h.container.h = 400, 300
	assert.Equal(t, 400.0, h.flock.Bounds().Width)
	assert.Equal(t, 300.0, h.flock.Bounds().Height)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(5, 10, 10, 3))

	require.NoError(t, h.flock.Start())
	assert.True(t, h.flock.Running())
	assert.True(t, h.container.visible)
	assert.Equal(t, swarm.PhaseHome, h.flock.Phase())
	assert.Equal(t, h.anchor.center, h.flock.Target())
	assert.Len(t, h.sched.frames, 1)
	assert.Len(t, h.sched.timers, 1)
	assert.NotNil(t, h.input.handler)

	// starting again changes nothing
	require.NoError(t, h.flock.Start())
	assert.Len(t, h.sched.frames, 1)
	assert.Len(t, h.sched.timers, 1)

	h.flock.Stop()
	assert.False(t, h.flock.Running())
	assert.False(t, h.container.visible)
	assert.Equal(t, r2.Point{}, h.flock.Target())
	assert.Equal(t, swarm.PhaseIdle, h.flock.Phase())
	assert.Empty(t, h.sched.frames)
	assert.Empty(t, h.sched.timers)
	assert.Nil(t, h.input.handler)
}

func TestStopTwice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Start())
	h.flock.Stop()
	assert.NotPanics(t, h.flock.Stop)
	assert.False(t, h.flock.Running())
	assert.Equal(t, 1, h.sched.cancelledFrames)
	assert.Equal(t, 1, h.sched.cancelledTimers)
}

func TestToggleAndAnchorActivation(t *testing.T) {
	h := newHarness(t)
	h.flock.Toggle()
	assert.True(t, h.flock.Running())
	h.flock.Toggle()
	assert.False(t, h.flock.Running())

	h.anchor.activate()
	assert.True(t, h.flock.Running())
	h.anchor.activate()
	assert.False(t, h.flock.Running())
}

func TestPointerPressSetsTarget(t *testing.T) {
	h := newHarness(t)
	h.input.press(10, 20)
	assert.Equal(t, r2.Point{}, h.flock.Target(), "input is only bound while running")

	require.NoError(t, h.flock.Start())
	h.input.press(10, 20)
	assert.Equal(t, r2.Point{X: 10, Y: 20}, h.flock.Target())
}

func TestTickUpdatesAgentsAndReschedules(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(10, 10, 10, 3))
	require.NoError(t, h.flock.Start())

	before := make([]r2.Point, 0, 10)
	for _, a := range h.flock.Agents() {
		before = append(before, a.Position())
	}
	for i := 0; i < 5; i++ {
		h.sched.Step()
	}
	assert.Equal(t, uint64(5), h.flock.Ticks())
	assert.Len(t, h.sched.frames, 1)
	for i, a := range h.flock.Agents() {
		assert.NotEqual(t, before[i], a.Position())
		assert.Len(t, a.Visual().(*fakeVisual).renders, 5)
		assert.InDelta(t, 1.0, a.Velocity().Norm(), 1e-9)
	}
	assert.Empty(t, h.errs)
}

func TestTickReadsBoundsEveryTick(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(2, 10, 10, 3))
	require.NoError(t, h.flock.Start())
	calls := h.container.sizeCalls
	h.sched.Step()
	h.sched.Step()
	assert.GreaterOrEqual(t, h.container.sizeCalls-calls, 2)
}

func TestTwoAgentsEndToEnd(t *testing.T) {
	h := newHarness(t)
	a := swarm.NewAgent(10, 10, 3, r2.Point{X: 0, Y: 0}, 0, &fakeVisual{})
	b := swarm.NewAgent(10, 10, 3, r2.Point{X: 100, Y: 100}, 0, &fakeVisual{})
	require.NoError(t, h.flock.Add(a))
	require.NoError(t, h.flock.Add(b))
	require.NoError(t, h.flock.Start())
	h.flock.SetTarget(0, 0)

	h.sched.Step()

	require.Empty(t, h.errs)
	for _, ag := range []*swarm.Agent{a, b} {
		p := ag.Position()
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y))
		assert.False(t, math.IsInf(p.X, 0) || math.IsInf(p.Y, 0))
		assert.LessOrEqual(t, p.Sub(r2.Point{}).Norm(), 100*math.Sqrt2+3+1e-9)
	}
	assert.InDelta(t, 3.0, a.Position().Sub(r2.Point{}).Norm(), 1e-9)
	assert.InDelta(t, 3.0, b.Position().Sub(r2.Point{X: 100, Y: 100}).Norm(), 1e-9)
}

func TestTickErrorStopsAndReports(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(3, 10, 10, 3))
	boom := errors.New("render failed")
	h.flock.Agents()[1].Visual().(*fakeVisual).err = boom
	require.NoError(t, h.flock.Start())

	h.sched.Step()

	assert.False(t, h.flock.Running())
	assert.False(t, h.container.visible)
	assert.Empty(t, h.sched.frames)
	assert.Empty(t, h.sched.timers)
	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], swarm.ErrTickFailed)
	assert.ErrorIs(t, h.errs[0], boom)

	var te *swarm.TickError
	require.ErrorAs(t, h.errs[0], &te)
	assert.Equal(t, 1, te.Agent)

	// no retry
	h.sched.Step()
	assert.Len(t, h.errs, 1)
}

func TestTickPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(2, 10, 10, 3))
	h.flock.Agents()[0].Visual().(*fakeVisual).onRender = func() { panic("visual gone") }
	require.NoError(t, h.flock.Start())

	assert.NotPanics(t, h.sched.Step)
	assert.False(t, h.flock.Running())
	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], swarm.ErrTickFailed)
}

func TestTickNonFinitePositionStops(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Add(swarm.NewAgent(10, 10, math.NaN(), r2.Point{X: 10, Y: 10}, 0, nil)))
	require.NoError(t, h.flock.Add(swarm.NewAgent(10, 10, 3, r2.Point{X: 50, Y: 50}, 0, nil)))
	require.NoError(t, h.flock.Start())

	h.sched.Step()

	assert.False(t, h.flock.Running())
	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], swarm.ErrNonFinite)
}

func TestStopFromErrorSinkIsSafe(t *testing.T) {
	var f *swarm.Flock
	calls := 0
	h := newHarness(t, swarm.WithErrorSink(func(err error) {
		calls++
		f.Stop()
		f.Toggle() // restart from within the sink
	}))
	f = h.flock
	require.NoError(t, f.Populate(2, 10, 10, 3))
	f.Agents()[0].Visual().(*fakeVisual).err = errors.New("x")
	require.NoError(t, f.Start())

	assert.NotPanics(t, h.sched.Step)
	assert.Equal(t, 1, calls)
	assert.True(t, f.Running())
	assert.Len(t, h.sched.frames, 1)
}

func TestStopFromInsideTick(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(2, 10, 10, 3))
	h.flock.Agents()[0].Visual().(*fakeVisual).onRender = h.flock.Stop
	require.NoError(t, h.flock.Start())

	h.sched.Step()
	assert.False(t, h.flock.Running())
	assert.Empty(t, h.sched.frames)
	assert.Empty(t, h.errs)
}

func TestOscillationCycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Start())
	d := swarm.DefaultOscillation.Duration(1280 * 720)

	assert.Equal(t, swarm.PhaseHome, h.flock.Phase())
	h.sched.Advance(d)
	assert.Equal(t, swarm.PhaseScatter, h.flock.Phase())
	assert.Equal(t, r2.Point{}, h.flock.Target())
	h.sched.Advance(d)
	assert.Equal(t, swarm.PhaseHome, h.flock.Phase())
	assert.Equal(t, h.anchor.center, h.flock.Target())

	for _, got := range h.sched.delays {
		assert.Equal(t, d, got)
	}
}

func TestPointerInputDoesNotCancelOscillation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Start())
	d := swarm.DefaultOscillation.Duration(1280 * 720)

	h.input.press(300, 400)
	assert.Equal(t, r2.Point{X: 300, Y: 400}, h.flock.Target())
	assert.Len(t, h.sched.timers, 1)

	h.sched.Advance(d)
	assert.Equal(t, swarm.PhaseScatter, h.flock.Phase())
	assert.Equal(t, r2.Point{}, h.flock.Target(), "oscillation overwrites the pointer target")
}

func TestOscillationDurationTracksResize(t *testing.T) {
	h := newHarness(t)
	h.container.w, h.container.h = 320, 695
	require.NoError(t, h.flock.Start())
	h.container.w, h.container.h = 2560, 1245
	h.sched.Advance(swarm.DefaultOscillation.MinDuration)

	require.Len(t, h.sched.delays, 2)
	assert.Equal(t, swarm.DefaultOscillation.MinDuration, h.sched.delays[0])
	assert.Equal(t, swarm.DefaultOscillation.MaxDuration, h.sched.delays[1])
}

func TestTeardown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.flock.Populate(4, 10, 10, 3))
	require.NoError(t, h.flock.Start())

	h.flock.Teardown()
	assert.False(t, h.flock.Running())
	assert.Empty(t, h.flock.Agents())
	assert.Len(t, h.container.detached, 4)

	require.NoError(t, h.flock.Populate(2, 10, 10, 3))
	assert.Len(t, h.flock.Agents(), 2)
}

func TestCloseReleasesAnchor(t *testing.T) {
	h := newHarness(t)
	h.flock.Close()
	assert.Empty(t, h.anchor.handlers)
}
