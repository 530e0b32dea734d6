package socket

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps one WebSocket connection. Writes are serialized through a
// buffered outbound channel drained by a single write pump; the pump
// also drives the ping heartbeat.
type Conn struct {
	id      string
	ws      *websocket.Conn
	request *http.Request
	logger  *slog.Logger

	out  chan []byte
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	attrsMu sync.Mutex
	attrs   map[string]any
}

func newConn(id string, ws *websocket.Conn, r *http.Request, bufferSize int, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		id:      id,
		ws:      ws,
		request: r,
		logger:  logger,
		out:     make(chan []byte, bufferSize),
		done:    make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Request returns the upgrade request that opened this connection.
func (c *Conn) Request() *http.Request {
	return c.request
}

// Send queues a text frame for delivery. It never blocks: a full
// outbound buffer reports ErrSlowConsumer instead.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConnClosed
	}
	c.mu.RUnlock()

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// Set stores a per-connection attribute.
func (c *Conn) Set(key string, value any) {
	c.attrsMu.Lock()
	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	c.attrs[key] = value
	c.attrsMu.Unlock()
}

// Get returns a per-connection attribute.
func (c *Conn) Get(key string) (any, bool) {
	c.attrsMu.Lock()
	defer c.attrsMu.Unlock()
	v, ok := c.attrs[key]
	return v, ok
}

// close tears the connection down. Safe to call more than once.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.ws.Close()
}

// isClosed reports whether close has run.
func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// writePump drains the outbound channel and sends pings. It owns all
// writes to the underlying connection.
func (c *Conn) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}
