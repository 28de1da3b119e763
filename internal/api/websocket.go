package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/logging"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// WebSocket message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// EventMessage is the event type for relayed MQTT messages.
	EventMessage = "message"

	// streamBacklog is how many encoded events a client may fall behind by.
	streamBacklog = 256
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// MessageEvent is the payload of a "message" event.
type MessageEvent struct {
	Topic   string         `json:"topic"`
	QoS     byte           `json:"qos"`
	Payload string         `json:"payload"`
	Status  *status.Status `json:"status,omitempty"`
}

// Hub fans events out to every connected stream.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	streams map[*stream]struct{}
	closed  bool
}

// stream is one WebSocket peer. out is closed at most once, under mu.
type stream struct {
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	out    chan []byte
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The API listens on loopback by default and carries no credentials.
		return true
	},
}

// NewHub creates a hub with no streams.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		streams: make(map[*stream]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every stream.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	streams := h.streams
	h.streams = make(map[*stream]struct{})
	h.mu.Unlock()

	for st := range streams {
		st.shut()
	}
}

// ClientCount returns the number of connected streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// Broadcast encodes one event and queues it on every stream. A stream whose
// backlog is full misses the event.
func (h *Hub) Broadcast(eventType string, payload any) {
	frame, err := encodeFrame(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "event_type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for st := range h.streams {
		st.queue(frame)
	}
}

func (h *Hub) add(st *stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams[st] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.streams))
	return true
}

func (h *Hub) remove(st *stream) {
	h.mu.Lock()
	delete(h.streams, st)
	n := len(h.streams)
	h.mu.Unlock()

	st.shut()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// handleWebSocket upgrades the request and attaches the peer to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestIDFrom(r.Context()))
		return
	}

	st := &stream{
		hub:  s.hub,
		conn: conn,
		out:  make(chan []byte, streamBacklog),
	}
	if !s.hub.add(st) {
		conn.Close()
		return
	}

	go st.writeLoop()
	go st.readLoop()
}

// shut closes the outbound queue; writeLoop then closes the socket.
func (st *stream) shut() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	close(st.out)
}

// queue never blocks and is a no-op after shut.
func (st *stream) queue(frame []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	select {
	case st.out <- frame:
	default:
	}
}

func (st *stream) pongWait() time.Duration {
	return time.Duration(st.hub.cfg.PingInterval+st.hub.cfg.PongTimeout) * time.Second
}

// readLoop answers application pings and keeps the read deadline fresh.
func (st *stream) readLoop() {
	defer func() {
		st.hub.remove(st)
		st.conn.Close()
	}()

	st.conn.SetReadLimit(int64(st.hub.cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline; a stale peer fails the next read
	st.conn.SetReadDeadline(time.Now().Add(st.pongWait()))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(st.pongWait()))
	})

	for {
		_, data, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				st.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		st.conn.SetReadDeadline(time.Now().Add(st.pongWait()))

		if reply := replyTo(data); reply != nil {
			st.queue(reply)
		}
	}
}

// writeLoop drains the queue and sends keepalive pings.
func (st *stream) writeLoop() {
	ticker := time.NewTicker(time.Duration(st.hub.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		st.conn.Close()
	}()

	writeWait := time.Duration(st.hub.cfg.PongTimeout) * time.Second

	for {
		var (
			kind    int
			payload []byte
		)
		select {
		case frame, ok := <-st.out:
			if !ok {
				//nolint:errcheck // Best-effort close frame
				st.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			kind, payload = websocket.TextMessage, frame
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // Write below reports a dead connection
		st.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := st.conn.WriteMessage(kind, payload); err != nil {
			return
		}
	}
}

// replyTo builds the response to a client frame. The stream is one-way apart
// from pings, so anything else is answered with an error frame.
func replyTo(data []byte) []byte {
	var in WSMessage
	reply := WSMessage{Type: WSTypeError}

	switch err := json.Unmarshal(data, &in); {
	case err != nil:
		reply.Payload = map[string]string{"message": "invalid JSON message"}
	case in.Type == WSTypePing:
		reply = WSMessage{Type: WSTypePong, ID: in.ID}
	default:
		reply.ID = in.ID
		reply.Payload = map[string]string{"message": "unknown message type: " + in.Type}
	}

	frame, err := encodeFrame(reply)
	if err != nil {
		return nil
	}
	return frame
}

func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}
