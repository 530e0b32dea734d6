package socket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/modkit-go/modkit"
)

// Default values for optional configuration fields.
const (
	DefaultPingInterval   = 15 * time.Second
	DefaultPongTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadLimit      = 1 << 20 // 1 MiB frames
	DefaultOutboundBuffer = 64
)

// Config holds gateway settings.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	OutboundBuffer int

	// CheckOrigin overrides the upgrader's origin policy. Nil keeps the
	// gorilla default (same-origin).
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadLimit == 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.OutboundBuffer == 0 {
		c.OutboundBuffer = DefaultOutboundBuffer
	}
}

// Gateway owns the WebSocket upgrader and the registry of live
// connections, and routes inbound envelopes through the manager's
// modules.
type Gateway struct {
	cfg      Config
	mgr      *modkit.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewGateway creates a gateway dispatching into the given manager.
func NewGateway(cfg Config, mgr *modkit.Manager, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Gateway{
		cfg:    cfg,
		mgr:    mgr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		conns: make(map[string]*Conn),
	}
}

// Attach mounts the gateway's upgrade endpoint on the manager at path.
func (g *Gateway) Attach(path string) {
	g.mgr.Mount(path, g)
}

// ServeHTTP upgrades the request and runs the connection until it
// closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	conn := newConn(id, ws, r, g.cfg.OutboundBuffer, g.logger.With("conn_id", id))

	g.mu.Lock()
	g.conns[id] = conn
	g.mu.Unlock()

	g.logger.Debug("connection opened", "conn_id", id, "remote", r.RemoteAddr)

	go conn.writePump(g.cfg.PingInterval, g.cfg.WriteTimeout)
	g.readPump(conn)

	g.mu.Lock()
	delete(g.conns, id)
	g.mu.Unlock()

	conn.close()
	g.logger.Debug("connection closed", "conn_id", id)
}

// Conn returns a live connection by id.
func (g *Gateway) Conn(id string) (*Conn, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[id]
	return c, ok
}

// Count returns the number of live connections.
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Close tears down every live connection.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[string]*Conn)
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// readPump reads envelopes until the connection errors or closes. A
// connection with no pong inside the timeout is considered stale and
// dropped.
func (g *Gateway) readPump(conn *Conn) {
	conn.ws.SetReadLimit(g.cfg.ReadLimit)
	conn.ws.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})
	conn.ws.SetPingHandler(func(data string) error {
		conn.ws.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
		return conn.ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !conn.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.logger.Debug("read failed", "error", err)
			}
			return
		}
		g.handleMessage(conn, data)
	}
}

// handleMessage is the message controller: it parses the envelope,
// dispatches it through the module chain, and replies on completion. A
// malformed envelope gets an error reply, never a dropped connection.
func (g *Gateway) handleMessage(conn *Conn, raw []byte) {
	env, err := parseEnvelope(raw)
	if err != nil {
		g.reply(conn, &Reply{ID: 0, Type: "error", Error: err.Error()})
		return
	}

	params, err := flattenData(env.Data)
	if err != nil {
		g.reply(conn, &Reply{ID: env.ID, Type: "error", Error: err.Error()})
		return
	}

	req := modkit.MessageRequest{
		Path:        env.Path,
		Params:      params,
		HTTPRequest: conn.request,
	}

	g.mgr.DispatchMessage(conn.request.Context(), req, func(v any, err error) {
		if err != nil {
			g.reply(conn, &Reply{ID: env.ID, Type: "error", Error: err.Error()})
			return
		}
		g.reply(conn, &Reply{ID: env.ID, Type: "result", Data: v})
	})
}

// reply serializes and queues an outbound frame. Replies to a closed
// connection are discarded.
func (g *Gateway) reply(conn *Conn, r *Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		conn.logger.Error("encode reply failed", "error", err)
		return
	}

	switch err := conn.Send(data); err {
	case nil:
	case ErrConnClosed:
		// Deferred completion raced connection teardown.
	default:
		conn.logger.Warn("reply dropped", "id", r.ID, "error", err)
	}
}
