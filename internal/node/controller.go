// Package node provides the bootstrap pipeline for the swarm host.
package node

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tedvkremer/swarmag-website/internal/api/rest"
	"github.com/tedvkremer/swarmag-website/internal/api/ws"
	"github.com/tedvkremer/swarmag-website/internal/config"
	"github.com/tedvkremer/swarmag-website/internal/host"
	"github.com/tedvkremer/swarmag-website/internal/protocol"
	"github.com/tedvkremer/swarmag-website/internal/spatial"
	"github.com/tedvkremer/swarmag-website/internal/storage/local"
	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

const shutdownTimeout = 5 * time.Second

// Controller wires the flock to a host and runs it.
type Controller struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewController creates a Controller for cfg.
func NewController(cfg *config.Config, logger *zap.Logger) *Controller {
	return &Controller{cfg: cfg, logger: logger}
}

// Steering maps the steering section onto swarm.Steering.
func (c *Controller) Steering() swarm.Steering {
	s := c.cfg.Steering
	return swarm.Steering{
		TurnRate:        s.TurnRate,
		MinComfortable:  s.MinComfortable,
		MaxComfortable:  s.MaxComfortable,
		InfluenceRadius: s.InfluenceRadius,
	}
}

// Oscillation maps the oscillation section onto swarm.Oscillation.
func (c *Controller) Oscillation() (swarm.Oscillation, error) {
	o := c.cfg.Oscillation
	policy, err := swarm.ParseScatterPolicy(o.ScatterPolicy)
	if err != nil {
		return swarm.Oscillation{}, err
	}
	return swarm.Oscillation{
		MinDuration: o.MinDuration,
		MaxDuration: o.MaxDuration,
		LowEnd:      spatial.Bounds{Width: o.LowEndWidth, Height: o.LowEndHeight},
		HighEnd:     spatial.Bounds{Width: o.HighEndWidth, Height: o.HighEndHeight},
		Scatter:     policy,
	}, nil
}

func (c *Controller) newRand() *rand.Rand {
	seed := c.cfg.Swarm.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// stage is one flock bound to its in-memory host surfaces.
type stage struct {
	flock    *swarm.Flock
	viewport *host.Viewport
	anchor   *host.Anchor
	pointer  *host.Pointer
}

// newStage builds, initializes and populates a flock on sched. Call it on the
// goroutine that owns sched.
func (c *Controller) newStage(sched swarm.Scheduler, sink swarm.ErrorSink) (*stage, error) {
	osc, err := c.Oscillation()
	if err != nil {
		return nil, err
	}
	st := &stage{
		viewport: host.NewViewport(c.cfg.Viewport.Width, c.cfg.Viewport.Height),
		anchor:   host.NewAnchor(c.cfg.Anchor.X, c.cfg.Anchor.Y, c.cfg.Anchor.Width, c.cfg.Anchor.Height),
		pointer:  &host.Pointer{},
	}
	opts := []swarm.Option{
		swarm.WithSteering(c.Steering()),
		swarm.WithOscillation(osc),
		swarm.WithInput(st.pointer),
		swarm.WithLogger(c.logger.Named("swarm")),
		swarm.WithRand(c.newRand()),
	}
	if sink != nil {
		opts = append(opts, swarm.WithErrorSink(sink))
	}
	st.flock = swarm.NewFlock(sched, opts...)

	if err := st.flock.Initialize(st.viewport, st.anchor); err != nil {
		return nil, fmt.Errorf("swarm init: %w", err)
	}
	sw := c.cfg.Swarm
	if err := st.flock.Populate(sw.Count, sw.AgentWidth, sw.AgentHeight, sw.Speed); err != nil {
		return nil, fmt.Errorf("swarm populate: %w", err)
	}
	return st, nil
}

// openRecorder opens the frame store and a recorder sampling st. Both are nil
// when recording is disabled. Frames left by an earlier run are dropped so the
// store only ever holds one run.
func (c *Controller) openRecorder(st *stage) (*local.PebbleStorage, *local.Recorder, error) {
	rc := c.cfg.Recording
	if !rc.Enabled {
		return nil, nil, nil
	}
	store := local.NewPebbleStorage(rc.Path, c.logger.Named("recorder"))
	if err := store.Init(); err != nil {
		return nil, nil, fmt.Errorf("recording init: %w", err)
	}
	if err := store.Truncate(); err != nil {
		return nil, nil, multierror.Append(fmt.Errorf("recording reset: %w", err), store.Close())
	}
	capture := func(n uint64) protocol.Frame { return host.Capture(n, st.flock, st.viewport) }
	return store, local.NewRecorder(store, rc.Every, capture, c.logger.Named("recorder")), nil
}

// Serve runs the swarm on a real-time loop behind the REST API and the
// websocket stream until ctx is cancelled. With start set the flock starts
// immediately instead of waiting for the anchor to be activated.
func (c *Controller) Serve(ctx context.Context, start bool) error {
	loop := host.NewLoop(c.cfg.Loop.FrameRate, c.logger.Named("loop"))

	// nothing runs on the loop yet, so staging here is still single-threaded
	st, err := c.newStage(loop, nil)
	if err != nil {
		return err
	}
	if start {
		if err := st.flock.Start(); err != nil {
			return fmt.Errorf("swarm start: %w", err)
		}
	}
	// the store is opened last: nothing below can fail before the run
	store, recorder, err := c.openRecorder(st)
	if err != nil {
		st.flock.Close()
		return err
	}

	hub := ws.NewHub(loop, st.flock, st.viewport, st.pointer,
		c.cfg.Loop.FrameRate, c.cfg.Loop.BroadcastRate, c.logger.Named("ws"))
	loop.OnFrame(hub.OnFrame)
	var frames local.FrameStore
	if recorder != nil {
		loop.OnFrame(recorder.OnFrame)
		frames = store
	}

	api := rest.New(loop, st.flock, st.viewport, frames, c.logger.Named("rest"))
	api.Mount("/swarm/stream", hub)
	srv := &http.Server{
		Addr:              c.cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		c.logger.Info("HTTP listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}
	// the loop has exited; the flock can be torn down from here
	st.flock.Close()
	if recorder != nil {
		if err := recorder.Err(); err != nil {
			c.logger.Warn("Some frames were not recorded", zap.Error(err))
		}
		if err := store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("recording close: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// Summary describes a finished simulation.
type Summary struct {
	Frames   uint64        `json:"frames"`
	Ticks    uint64        `json:"ticks"`
	Elapsed  time.Duration `json:"elapsed"`
	Phase    string        `json:"phase"`
	Running  bool          `json:"running"`
	Recorded int           `json:"recorded"`
	Failure  string        `json:"failure,omitempty"`
}

// Simulate starts the swarm and runs it for the given number of frames on
// virtual time. It stops early when ctx is cancelled or the flock fails.
func (c *Controller) Simulate(ctx context.Context, frames uint64) (Summary, error) {
	sched := host.NewManual(c.cfg.Loop.FrameRate)
	var failure error
	st, err := c.newStage(sched, func(err error) {
		failure = err
		c.logger.Error("Swarm animation stopped", zap.Error(err))
	})
	if err != nil {
		return Summary{}, err
	}
	if err := st.flock.Start(); err != nil {
		return Summary{}, fmt.Errorf("swarm start: %w", err)
	}
	store, recorder, err := c.openRecorder(st)
	if err != nil {
		st.flock.Close()
		return Summary{}, err
	}
	if recorder != nil {
		sched.OnFrame(recorder.OnFrame)
	}

	for sched.Frame() < frames && failure == nil && ctx.Err() == nil {
		sched.Step()
	}

	sum := Summary{
		Frames:  sched.Frame(),
		Ticks:   st.flock.Ticks(),
		Elapsed: sched.Now(),
		Phase:   st.flock.Phase().String(),
		Running: st.flock.Running(),
	}
	if failure != nil {
		sum.Failure = failure.Error()
	}
	st.flock.Close()

	var result *multierror.Error
	if recorder != nil {
		sum.Recorded = recorder.Recorded()
		if err := recorder.Err(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("recording close: %w", err))
		}
	}
	c.logger.Info("Simulation finished",
		zap.Uint64("frames", sum.Frames),
		zap.Uint64("ticks", sum.Ticks),
		zap.Int("recorded", sum.Recorded),
	)
	return sum, result.ErrorOrNil()
}

// Replay reads the recorded frames numbered from..to from the configured
// recording path. A to of zero reads to the end.
func (c *Controller) Replay(from, to uint64) ([]protocol.Frame, error) {
	store := local.NewPebbleStorage(c.cfg.Recording.Path, c.logger.Named("recorder"))
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("recording open: %w", err)
	}
	frames, err := store.Range(from, to)
	if cerr := store.Close(); cerr != nil {
		err = multierror.Append(err, cerr).ErrorOrNil()
	}
	return frames, err
}
