package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 25 * time.Second
	maxMessage   = 1 << 16
)

// ErrSlowClient is returned by Send when the client's queue is full.
var ErrSlowClient = errors.New("ws: client send queue full")

var upgrader = websocket.Upgrader{
	// any origin may embed the stream
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn queues outgoing messages for a dedicated writer goroutine so the
// loop never blocks on a client.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn: c,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(b []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	c := newConn(raw)
	go c.writeLoop()

	joined := make(chan string, 1)
	if !h.loop.Post(func() { joined <- h.Join(c) }) {
		_ = c.Close()
		return
	}
	var id string
	select {
	case id = <-joined:
	case <-h.loop.Done():
		// stopped with the join still queued
		_ = c.Close()
		return
	}
	if id == "" {
		return
	}

	raw.SetReadLimit(maxMessage)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("Client read failed", zap.String("client", id), zap.Error(err))
			}
			break
		}
		if !h.loop.Post(func() { h.Handle(id, msg) }) {
			break
		}
	}
	h.loop.Post(func() { h.Leave(id) })
	_ = c.Close()
}
