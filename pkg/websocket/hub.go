package websocket

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/ridedemand/pkg/logger"
	"go.uber.org/zap"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ridedemand_ws_clients",
		Help: "Number of connected dashboard sessions",
	})

	messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ridedemand_ws_messages_total",
		Help: "WebSocket messages received by type",
	}, []string{"type"})
)

// MessageTypeError is sent back when a message cannot be handled
const MessageTypeError = "error"

// Message is the envelope exchanged with dashboard clients
type Message struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// HandlerFunc handles one inbound message type
type HandlerFunc func(client *Client, msg *Message)

// Hub tracks connected clients and routes their messages to handlers
type Hub struct {
	clients  map[string]*Client
	handlers map[string]HandlerFunc
	onLeave  []func(*Client)
	mu       sync.RWMutex

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message

	done chan struct{}
	stop sync.Once
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		handlers:   make(map[string]HandlerFunc),
		Register:   make(chan *Client, 16),
		Unregister: make(chan *Client, 16),
		Broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.Broadcast:
			h.SendToAll(msg)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	old, exists := h.clients[client.ID]
	h.clients[client.ID] = client
	h.mu.Unlock()

	if exists && old != client {
		old.close()
	} else {
		connectedClients.Inc()
	}
	logger.Debug("WebSocket client registered", zap.String("client_id", client.ID))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		delete(h.clients, client.ID)
	}
	leave := h.onLeave
	h.mu.Unlock()

	client.close()
	if !ok || current != client {
		return
	}

	connectedClients.Dec()
	for _, fn := range leave {
		fn(client)
	}
	logger.Debug("WebSocket client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
		connectedClients.Dec()
	}
}

// OnUnregister adds a callback run after a client leaves the hub
func (h *Hub) OnUnregister(fn func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLeave = append(h.onLeave, fn)
}

// RegisterHandler registers the handler for a message type
func (h *Hub) RegisterHandler(msgType string, handler HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// HandleMessage routes msg to its handler. Unknown types are answered with an error message.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		messagesHandled.WithLabelValues("unknown").Inc()
		client.logger.Warn("Unknown message type", zap.String("type", msg.Type))
		client.SendMessage(ErrorMessage("unknown message type: " + msg.Type))
		return
	}

	messagesHandled.WithLabelValues(msg.Type).Inc()
	handler(client, msg)
}

// SendToUser sends msg to one client if connected
func (h *Hub) SendToUser(clientID string, msg *Message) {
	if client, ok := h.GetClient(clientID); ok {
		client.SendMessage(msg)
	}
}

// SendToAll sends msg to every connected client
func (h *Hub) SendToAll(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.SendMessage(msg)
	}
}

// GetClient returns the client with the given id
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	return c, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ErrorMessage builds an error envelope
func ErrorMessage(message string) *Message {
	return &Message{
		Type: MessageTypeError,
		Data: map[string]interface{}{"message": message},
	}
}
