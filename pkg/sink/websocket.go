package sink

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/loopscribe/pkg/buffer"
	"github.com/haivivi/loopscribe/pkg/metrics"
)

const (
	// DefaultBacklog is the number of recent records replayed to a client
	// when it connects.
	DefaultBacklog = 32

	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// WebSocket broadcasts records as JSON text messages to every connected
// client. It is an http.Handler; mount it on any path.
//
// A client that cannot keep up is disconnected rather than allowed to
// stall the pipeline.
type WebSocket struct {
	upgrader websocket.Upgrader
	log      *slog.Logger
	metrics  *metrics.Metrics
	backlog  *buffer.Ring[[]byte]

	mu      sync.Mutex
	clients map[string]*wsClient
	closed  bool
}

type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewWebSocket creates a hub replaying up to backlog recent records to new
// clients. backlog <= 0 uses DefaultBacklog. logger and m may be nil.
func NewWebSocket(backlog int, logger *slog.Logger, m *metrics.Metrics) *WebSocket {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger,
		metrics: m,
		backlog: buffer.RingN[[]byte](min(backlog, clientBuffer)),
		clients: make(map[string]*wsClient),
	}
}

func (h *WebSocket) Transcript(ev TranscriptEvent) {
	h.broadcast(TranscriptRecord(ev))
}

func (h *WebSocket) Analysis(ev AnalysisEvent) {
	h.broadcast(AnalysisRecord(ev))
}

// Clients returns the number of connected clients.
func (h *WebSocket) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	for _, msg := range h.backlog.Items() {
		c.send <- msg
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetLiveClients(n)
	h.log.Info("live client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writeLoop(c)
	// Incoming messages are ignored; reading detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}

func (h *WebSocket) writeLoop(c *wsClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("live client write failed", "client", c.id, "error", err)
			h.drop(c)
			break
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

func (h *WebSocket) broadcast(r Record) {
	msg, err := json.Marshal(r)
	if err != nil {
		h.log.Warn("sink: encode record", "seq", r.Seq, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog.Add(msg)
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("live client too slow, disconnecting", "client", c.id)
			h.dropLocked(c)
		}
	}
}

func (h *WebSocket) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *WebSocket) dropLocked(c *wsClient) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	c.closeOnce.Do(func() { close(c.send) })
	h.metrics.SetLiveClients(len(h.clients))
	h.log.Info("live client disconnected", "client", c.id)
}

// Close disconnects every client. Later connections are refused.
func (h *WebSocket) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, c := range h.clients {
		h.dropLocked(c)
	}
	return nil
}
