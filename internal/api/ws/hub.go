// Package ws streams flock frames to browser clients over websockets and feeds
// their presses, resizes and toggles back into the loop.
package ws

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/host"
	"github.com/tedvkremer/swarmag-website/internal/protocol"
	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

// Conn is a client connection as seen by the hub.
type Conn interface {
	Send([]byte) error
	Close() error
}

// Poster queues work onto the goroutine that owns the flock. Done is closed
// once that goroutine stops running posted work.
type Poster interface {
	Post(fn func()) bool
	Done() <-chan struct{}
}

// Hub tracks connected clients. Its methods run on the loop goroutine; the
// HTTP handler posts into it.
type Hub struct {
	loop      Poster
	flock     *swarm.Flock
	viewport  *host.Viewport
	pointer   *host.Pointer
	frameRate int
	every     uint64
	logger    *zap.Logger

	clients map[string]Conn
}

// NewHub creates a hub broadcasting broadcastRate frames per second out of a
// loop running at frameRate.
func NewHub(loop Poster, flock *swarm.Flock, viewport *host.Viewport, pointer *host.Pointer,
	frameRate, broadcastRate int, logger *zap.Logger) *Hub {
	every := 1
	if broadcastRate > 0 && frameRate > broadcastRate {
		every = frameRate / broadcastRate
	}
	return &Hub{
		loop:      loop,
		flock:     flock,
		viewport:  viewport,
		pointer:   pointer,
		frameRate: frameRate,
		every:     uint64(every),
		logger:    logger,
		clients:   make(map[string]Conn),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return len(h.clients) }

// Join registers c under a fresh id and sends it the welcome message.
func (h *Hub) Join(c Conn) string {
	id := uuid.NewString()
	b, err := protocol.Encode(protocol.MsgWelcome, protocol.Welcome{ClientID: id, FrameRate: h.frameRate})
	if err != nil {
		h.logger.Error("Encode welcome failed", zap.Error(err))
		_ = c.Close()
		return ""
	}
	if err := c.Send(b); err != nil {
		h.logger.Debug("Welcome not delivered", zap.String("client", id), zap.Error(err))
		_ = c.Close()
		return ""
	}
	h.clients[id] = c
	h.logger.Info("Client joined", zap.String("client", id), zap.Int("clients", len(h.clients)))
	return id
}

// Leave closes and forgets client id.
func (h *Hub) Leave(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	_ = c.Close()
	h.logger.Info("Client left", zap.String("client", id), zap.Int("clients", len(h.clients)))
}

// Handle applies one client message. Unknown or malformed messages are
// logged and ignored.
func (h *Hub) Handle(id string, msg []byte) {
	if _, ok := h.clients[id]; !ok {
		return
	}
	env, err := protocol.DecodeEnvelope(msg)
	if err != nil {
		h.logger.Debug("Bad client message", zap.String("client", id), zap.Error(err))
		return
	}
	switch env.T {
	case protocol.MsgHello:
	case protocol.MsgPress:
		p, err := protocol.DecodePayload[protocol.Press](env)
		if err != nil {
			h.logger.Debug("Bad press", zap.String("client", id), zap.Error(err))
			return
		}
		h.pointer.Press(p.X, p.Y)
	case protocol.MsgResize:
		r, err := protocol.DecodePayload[protocol.Resize](env)
		if err != nil {
			h.logger.Debug("Bad resize", zap.String("client", id), zap.Error(err))
			return
		}
		h.viewport.Resize(r.W, r.H)
	case protocol.MsgToggle:
		h.flock.Toggle()
	default:
		h.logger.Debug("Unknown message type", zap.String("client", id), zap.String("type", env.T))
	}
}

// OnFrame broadcasts frame n on the broadcast interval. Clients whose send
// fails are dropped.
func (h *Hub) OnFrame(n uint64) {
	if len(h.clients) == 0 || n%h.every != 0 {
		return
	}
	b, err := protocol.Encode(protocol.MsgFrame, host.Capture(n, h.flock, h.viewport))
	if err != nil {
		h.logger.Error("Encode frame failed", zap.Error(err))
		return
	}

	var failed []string
	for id, c := range h.clients {
		if err := c.Send(b); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.logger.Warn("Dropping slow client", zap.String("client", id))
		h.Leave(id)
	}
}
