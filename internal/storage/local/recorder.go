package local

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/protocol"
)

// CaptureFunc builds the frame to record for frame number n.
type CaptureFunc func(n uint64) protocol.Frame

// Recorder samples every nth frame into a FrameStore. Its OnFrame method is
// meant to be registered as a loop frame hook.
type Recorder struct {
	store   FrameStore
	every   uint64
	capture CaptureFunc
	logger  *zap.Logger

	mu       sync.Mutex
	recorded int
	errs     *multierror.Error
}

// NewRecorder records one frame out of every. An every of zero records each
// frame.
func NewRecorder(store FrameStore, every int, capture CaptureFunc, logger *zap.Logger) *Recorder {
	if every <= 0 {
		every = 1
	}
	return &Recorder{
		store:   store,
		every:   uint64(every),
		capture: capture,
		logger:  logger,
	}
}

// OnFrame records frame n when it falls on the sampling interval. Failures
// are logged and collected; recording continues.
func (r *Recorder) OnFrame(n uint64) {
	if n%r.every != 0 {
		return
	}
	err := r.store.Put(r.capture(n))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Warn("Frame not recorded", zap.Uint64("frame", n), zap.Error(err))
		r.errs = multierror.Append(r.errs, err)
		return
	}
	r.recorded++
}

// Recorded returns the number of frames stored.
func (r *Recorder) Recorded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Err returns every recording failure so far, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs.ErrorOrNil()
}
