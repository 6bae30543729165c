package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// subscriptionRequest represents a view subscription/unsubscription request
type subscriptionRequest struct {
	client    *Client
	sub       *Subscription
	subscribe bool
}

// Hub fans change envelopes out to websocket clients. Each client holds a
// set of view subscriptions; an envelope is delivered to every subscription
// whose view matches the envelope's collection and whose context filter
// matches the document.
type Hub struct {
	mu  sync.RWMutex
	log *logger.Logger

	// clients maps connection ID to client (for cleanup)
	clients map[string]*Client

	register     chan *Client
	unregister   chan *Client
	subscription chan subscriptionRequest
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:          log,
		clients:      make(map[string]*Client),
		register:     make(chan *Client, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				req.client.addSubscription(req.sub)
			} else {
				req.client.removeSubscription(req.sub.Key())
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe attaches a view subscription to a client
func (h *Hub) Subscribe(client *Client, sub *Subscription) {
	h.subscription <- subscriptionRequest{client: client, sub: sub, subscribe: true}
}

// Unsubscribe detaches a view subscription from a client
func (h *Hub) Unsubscribe(client *Client, sub *Subscription) {
	h.subscription <- subscriptionRequest{client: client, sub: sub, subscribe: false}
}

// Broadcast delivers an envelope to every matching subscription.
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		for _, sub := range client.matchingSubscriptions(env) {
			msg, err := json.Marshal(dataMessage{
				Type:         "data",
				Subscription: sub.SubscriberID,
				Envelope:     env,
			})
			if err != nil {
				continue
			}
			if !client.trySend(msg) {
				// slow consumer; drop rather than block the hub
				if h.log != nil {
					h.log.Warnf("dropping message for slow websocket client %s", client.ID)
				}
			}
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
}

type dataMessage struct {
	Type         string          `json:"type"`
	Subscription string          `json:"subscription"`
	Envelope     events.Envelope `json:"envelope"`
}
