package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/sim"
	"github.com/zeusync/robosim/pkg/generic"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config holds telemetry server configuration
type Config struct {
	ListenAddr   string
	MaxClients   int
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8080",
		MaxClients:   64,
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxClients <= 0:
		return fmt.Errorf("%w: max clients must be positive", ErrInvalidConfig)
	case c.SendBuffer <= 0:
		return fmt.Errorf("%w: send buffer must be positive", ErrInvalidConfig)
	case c.PingInterval <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	return nil
}

// Frame is the JSON message pushed to every viewer after a step.
type Frame struct {
	Type      string    `json:"type"`
	Simulator string    `json:"simulator"`
	World     string    `json:"world,omitempty"`
	Robots    []string  `json:"robots,omitempty"`
	Digest    uint64    `json:"digest"`
	State     sim.State `json:"state"`
}

const FrameState = "state"

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Telemetry streams simulator state frames to websocket viewers at /ws.
type Telemetry struct {
	config Config
	logger log.Log

	mu      sync.Mutex
	clients map[uuid.UUID]*client

	buffers *generic.Pool[*bytes.Buffer]

	server   *http.Server
	listener net.Listener
	running  int32
	closed   int32

	frames  uint64
	dropped uint64
}

// NewTelemetry creates a telemetry hub. A nil logger disables logging.
func NewTelemetry(config Config, logger log.Log) (*Telemetry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Telemetry{
		config:  config,
		logger:  logger.With(log.String("component", "telemetry")),
		clients: make(map[uuid.UUID]*client),
		buffers: generic.NewHotPool(func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		}, (*bytes.Buffer).Reset, 4),
	}, nil
}

// Handler returns the HTTP routes served by the hub.
func (t *Telemetry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "ok clients=%d\n", t.Clients())
	})
	return mux
}

// Start binds the listener and serves in the background.
func (t *Telemetry) Start(ctx context.Context) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", t.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&t.running, 0)
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	t.listener = ln
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("Telemetry server stopped", log.Error(err))
		}
	}()

	t.logger.Info("Telemetry listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or nil before Start.
func (t *Telemetry) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop shuts the HTTP server down and disconnects every viewer.
func (t *Telemetry) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&t.closed, 1)

	t.mu.Lock()
	for id, c := range t.clients {
		c.close()
		delete(t.clients, id)
	}
	t.mu.Unlock()

	err := t.server.Shutdown(ctx)
	t.logger.Info("Telemetry stopped",
		log.Uint64("frames", atomic.LoadUint64(&t.frames)),
		log.Uint64("dropped", atomic.LoadUint64(&t.dropped)))
	return err
}

// Clients reports the number of connected viewers.
func (t *Telemetry) Clients() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// PublishState broadcasts the simulator's current state.
func (t *Telemetry) PublishState(s *sim.Simulator) error {
	frame := Frame{
		Type:      FrameState,
		Simulator: s.ID(),
		World:     s.World().Name,
		Robots:    s.Robots(),
		Digest:    s.Digest(),
		State:     s.State(),
	}
	return t.Broadcast(frame)
}

// Broadcast JSON-encodes v and queues it for every viewer. Viewers whose
// queue is full are disconnected.
func (t *Telemetry) Broadcast(v any) error {
	buf := t.buffers.Get()
	defer t.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	msg := bytes.TrimRight(buf.Bytes(), "\n")
	msg = append([]byte(nil), msg...)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, c := range t.clients {
		select {
		case c.send <- msg:
		default:
			c.close()
			delete(t.clients, id)
			atomic.AddUint64(&t.dropped, 1)
			t.logger.Warn("Dropping slow viewer", log.String("client", id.String()))
		}
	}
	atomic.AddUint64(&t.frames, 1)
	return nil
}

func (t *Telemetry) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	full := len(t.clients) >= t.config.MaxClients
	t.mu.Unlock()
	if full || atomic.LoadInt32(&t.closed) == 1 {
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, t.config.SendBuffer),
	}
	if !t.admit(c) {
		deadline := time.Now().Add(t.config.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ErrMaxClientsReached.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
		return
	}

	t.logger.Debug("Viewer connected",
		log.String("client", c.id.String()),
		log.String("remote", r.RemoteAddr))

	go t.readPump(c)
	go t.writePump(c)
}

// admit registers c unless the hub is full or closed. The limit is checked
// again here because upgrades run concurrently.
func (t *Telemetry) admit(c *client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.clients) >= t.config.MaxClients || atomic.LoadInt32(&t.closed) == 1 {
		return false
	}
	t.clients[c.id] = c
	return true
}

func (t *Telemetry) remove(c *client) {
	t.mu.Lock()
	if cur, ok := t.clients[c.id]; ok && cur == c {
		delete(t.clients, c.id)
		c.close()
	}
	t.mu.Unlock()
}

// Viewers are receive-only; reading keeps control frames flowing and detects
// disconnects.
func (t *Telemetry) readPump(c *client) {
	defer func() {
		t.remove(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (t *Telemetry) writePump(c *client) {
	ticker := time.NewTicker(t.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
