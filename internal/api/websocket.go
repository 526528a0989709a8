package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homesec-core/internal/controller"
	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// feedChannels are the channels a panel can subscribe to.
var feedChannels = map[string]bool{
	controller.ChannelStatus:    true,
	controller.ChannelActuators: true,
	ChannelDisplay:              true,
}

// WSMessage is the envelope for every frame on the live feed.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame; the payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans controller notifications out to panel connections. The last
// event on each channel is retained and replayed to new subscribers, so a
// panel that connects mid-alarm draws the current state at once.
type Hub struct {
	logger *logging.Logger

	readLimit    int64
	pingInterval time.Duration
	pongWait     time.Duration

	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	retained map[string][]byte
}

// wsClient is one panel connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	mu       sync.RWMutex
	channels map[string]bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates a hub. Intervals in cfg are whole seconds.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		logger:       logger,
		readLimit:    int64(cfg.MaxMessageSize),
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:     time.Duration(cfg.PongTimeout) * time.Second,
		clients:      make(map[*wsClient]struct{}),
		retained:     make(map[string][]byte),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.out)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// Broadcast sends payload as an event on channel to every subscriber and
// retains it for later subscribers.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal event", "channel", channel, "error", err)
		return
	}

	// Client sends happen outside the hub lock.
	h.mu.Lock()
	h.retained[channel] = data
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected panels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("panel connected", "clients", n)
}

// remove drops c. Only the caller that finds c in the map closes its
// queue, so shutdown and a failing read never close it twice.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.out)
	}
	h.logger.Debug("panel disconnected", "clients", n)
}

func (h *Hub) lastEvent(channel string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, ok := h.retained[channel]
	return data, ok
}

// handleWebSocket upgrades the request and attaches it to the hub.
// Nothing is sent until the panel subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "request_id", requestIDFrom(r))
		return
	}
	s.hub.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := &wsClient{
		hub:      h,
		conn:     conn,
		out:      make(chan []byte, wsSendBufferSize),
		channels: make(map[string]bool),
	}
	h.add(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	h := c.hub
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pingInterval + h.pongWait))
	}

	c.conn.SetReadLimit(h.readLimit)
	//nolint:errcheck // a failed deadline surfaces on the next read
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			} else {
				h.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts.
		//nolint:errcheck // a failed deadline surfaces on the next read
		extend()
		c.dispatch(data)
	}
}

func (c *wsClient) writeLoop() {
	h := c.hub
	ping := time.NewTicker(h.pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // write error is reported below
		c.conn.SetWriteDeadline(time.Now().Add(h.pongWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.out:
			if !ok {
				//nolint:errcheck // closing anyway
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypeUnsubscribe:
		c.unsubscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.replyError(req.ID, "unknown message type: "+req.Type)
	}
}

// channelsOf decodes and checks the channel list of a (un)subscribe request.
func (c *wsClient) channelsOf(req wsRequest) ([]string, bool) {
	var p WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil || len(p.Channels) == 0 {
		c.replyError(req.ID, "payload must list channels")
		return nil, false
	}
	for _, ch := range p.Channels {
		if !feedChannels[ch] {
			c.replyError(req.ID, "unknown channel: "+ch)
			return nil, false
		}
	}
	return p.Channels, true
}

// subscribe acknowledges, then replays the retained event of every channel
// that was not already subscribed.
func (c *wsClient) subscribe(req wsRequest) {
	channels, ok := c.channelsOf(req)
	if !ok {
		return
	}

	var added []string
	c.mu.Lock()
	for _, ch := range channels {
		if !c.channels[ch] {
			c.channels[ch] = true
			added = append(added, ch)
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("panel subscribed", "channels", channels)
	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	for _, ch := range added {
		if data, ok := c.hub.lastEvent(ch); ok {
			c.enqueue(data)
		}
	}
}

func (c *wsClient) unsubscribe(req wsRequest) {
	channels, ok := c.channelsOf(req)
	if !ok {
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// enqueue drops data when the panel is too slow to keep up or has already
// been removed.
func (c *wsClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a queue closed by remove
	}()

	select {
	case c.out <- data:
	default:
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsClient) replyError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
