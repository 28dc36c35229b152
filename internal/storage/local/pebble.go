package local

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/protocol"
)

// PebbleStorage is a Pebble LSM-tree backed FrameStore. Keys are big-endian
// frame numbers so iteration order is frame order.
type PebbleStorage struct {
	db     *pebble.DB
	path   string
	logger *zap.Logger
}

// NewPebbleStorage creates a PebbleStorage instance (not yet opened).
func NewPebbleStorage(dbPath string, logger *zap.Logger) *PebbleStorage {
	return &PebbleStorage{
		path:   dbPath,
		logger: logger,
	}
}

// Init opens the Pebble database.
func (p *PebbleStorage) Init() error {
	opts := &pebble.Options{
		Logger: &pebbleLogger{p.logger},
	}
	db, err := pebble.Open(p.path, opts)
	if err != nil {
		return fmt.Errorf("pebble open %s: %w", p.path, err)
	}
	p.db = db
	p.logger.Info("Pebble storage opened", zap.String("path", p.path))
	return nil
}

// Close flushes and closes the database.
func (p *PebbleStorage) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func frameKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// Put stores a frame, overwriting an earlier recording of the same number.
func (p *PebbleStorage) Put(fr protocol.Frame) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("marshal frame %d: %w", fr.Frame, err)
	}
	if err := p.db.Set(frameKey(fr.Frame), data, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// Get retrieves a frame by number.
func (p *PebbleStorage) Get(n uint64) (protocol.Frame, error) {
	data, closer, err := p.db.Get(frameKey(n))
	if errors.Is(err, pebble.ErrNotFound) {
		return protocol.Frame{}, fmt.Errorf("frame %d: %w", n, ErrNotFound)
	}
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	var fr protocol.Frame
	if err := json.Unmarshal(data, &fr); err != nil {
		return protocol.Frame{}, fmt.Errorf("unmarshal frame %d: %w", n, err)
	}
	return fr, nil
}

// Range returns the frames numbered from..to inclusive.
func (p *PebbleStorage) Range(from, to uint64) ([]protocol.Frame, error) {
	opts := &pebble.IterOptions{LowerBound: frameKey(from)}
	if to != 0 && to != ^uint64(0) {
		opts.UpperBound = frameKey(to + 1)
	}
	iter, err := p.db.NewIter(opts)
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	var frames []protocol.Frame
	for iter.First(); iter.Valid(); iter.Next() {
		var fr protocol.Frame
		if err := json.Unmarshal(iter.Value(), &fr); err != nil {
			return nil, fmt.Errorf("unmarshal frame %d: %w", binary.BigEndian.Uint64(iter.Key()), err)
		}
		frames = append(frames, fr)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Truncate deletes every stored frame.
func (p *PebbleStorage) Truncate() error {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer iter.Close()

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		keys = append(keys, k)
	}
	if err := iter.Error(); err != nil {
		return err
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	p.logger.Info("Frames truncated", zap.Int("count", len(keys)))
	return nil
}

// pebbleLogger adapts zap.Logger to the pebble.Logger interface.
type pebbleLogger struct {
	z *zap.Logger
}

func (l *pebbleLogger) Infof(format string, args ...any) {
	l.z.Sugar().Infof(format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...any) {
	l.z.Sugar().Fatalf(format, args...)
}
