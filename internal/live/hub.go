package live

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sms-gateway-dashboard/internal/metrics"
	"sms-gateway-dashboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxMessageBytes     = 64 << 10
)

// ErrClientGone is returned when the target client is not connected
var ErrClientGone = errors.New("live client is not connected")

// Handler processes one inbound message. Handlers run on their own goroutine
// so a slow operation never blocks the client's read loop.
type Handler func(ctx context.Context, c *Client, msg Message)

// Options configures a Hub
type Options struct {
	AllowedOrigins []string
	QueueSize      int
	WriteTimeout   time.Duration
	PongWait       time.Duration
}

// Client is one connected browser
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan Event

	mu     sync.Mutex
	closed atomic.Bool
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// UserID returns the authenticated staff user
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// Hub is the registry of connected clients
type Hub struct {
	upgrader     websocket.Upgrader
	queueSize    int
	writeTimeout time.Duration
	pongWait     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	clients  map[string]*Client
	handlers map[string]Handler
	wg       sync.WaitGroup
}

// NewHub creates a hub. An empty origin list accepts any origin.
func NewHub(opts Options) *Hub {
	h := &Hub{
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		pongWait:     opts.PongWait,
		clients:      make(map[string]*Client),
		handlers:     make(map[string]Handler),
	}
	if h.queueSize <= 0 {
		h.queueSize = defaultQueueSize
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.pongWait <= 0 {
		h.pongWait = defaultPongWait
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	origins := opts.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range origins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Handle registers the handler of an inbound event
func (h *Hub) Handle(event string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = fn
}

// ServeWS upgrades the request and runs the client until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan Event, h.queueSize),
	}
	h.register(client)
	defer h.unregister(client)

	go h.writePump(client)
	h.enqueue(client, Event{Name: EventReady, Data: map[string]string{"clientId": client.id}})

	h.readPump(client)
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.LiveClients.Inc()
	logger.Info("Live client connected", zap.String("client_id", c.id), zap.String("user_id", c.userID))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		metrics.LiveClients.Dec()
	}
	c.close()
	h.mu.Unlock()
	logger.Info("Live client disconnected", zap.String("client_id", c.id))
}

func (h *Hub) readPump(c *Client) {
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Live read ended", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))

		if msg.Event == "" {
			continue
		}

		h.mu.RLock()
		fn, ok := h.handlers[msg.Event]
		h.mu.RUnlock()
		if !ok {
			h.enqueue(c, Event{Name: EventError, Data: map[string]string{"error": "unknown event " + msg.Event}})
			continue
		}

		h.wg.Add(1)
		go func(msg Message) {
			defer h.wg.Done()
			fn(h.ctx, c, msg)
		}(msg)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Debug("Live write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the event when the client's queue is full; the client is too
// slow to keep up and will resync from the REST endpoints.
func (h *Hub) enqueue(c *Client, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		logger.Warn("Live client queue full, dropping event",
			zap.String("client_id", c.id),
			zap.String("event", ev.Name),
		)
		return false
	}
}

// Broadcast sends an event to every connected client
func (h *Hub) Broadcast(event string, data interface{}) {
	ev := Event{Name: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, ev)
	}
}

// BroadcastExcept sends an event to every client but one
func (h *Hub) BroadcastExcept(clientID, event string, data interface{}) {
	ev := Event{Name: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id != clientID {
			h.enqueue(c, ev)
		}
	}
}

// SendTo sends an event to one client
func (h *Hub) SendTo(clientID, event string, data interface{}) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return ErrClientGone
	}
	if !h.enqueue(c, Event{Name: event, Data: data}) {
		return ErrClientGone
	}
	return nil
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for running handlers
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
		metrics.LiveClients.Dec()
	}
	h.mu.Unlock()
	h.wg.Wait()
	h.cancel()
}
