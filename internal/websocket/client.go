package websocket

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscription is one active view subscription held by a client.
type Subscription struct {
	// SubscriberID is the ID of the backing subscriber record, echoed back to
	// the client so it can correlate data messages with its subscribe calls.
	SubscriberID string
	Name         string
	Context      map[string]string
}

// Key identifies a subscription within a connection by view name and context.
func (s *Subscription) Key() string {
	parts := make([]string, 0, len(s.Context)+1)
	parts = append(parts, s.Name)
	keys := make([]string, 0, len(s.Context))
	for k := range s.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+s.Context[k])
	}
	return strings.Join(parts, "|")
}

// matches reports whether an envelope belongs to this subscription's view.
// Removed documents carry no body, so they match on collection alone.
func (s *Subscription) matches(env events.Envelope) bool {
	if env.Collection != s.Name {
		return false
	}
	if env.Op == events.OpRemoved || len(env.Doc) == 0 || len(s.Context) == 0 {
		return true
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(env.Doc, &doc); err != nil {
		return true
	}
	for k, want := range s.Context {
		got, ok := doc[k]
		if !ok {
			return false
		}
		str, ok := got.(string)
		if !ok || str != want {
			return false
		}
	}
	return true
}

// Client represents a single websocket connection
type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewClient(userID uuid.UUID, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		subs:   make(map[string]*Subscription),
	}
}

func (c *Client) addSubscription(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[sub.Key()] = sub
}

func (c *Client) removeSubscription(key string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[key]
	delete(c.subs, key)
	return sub
}

func (c *Client) matchingSubscriptions(env events.Envelope) []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Subscription
	for _, sub := range c.subs {
		if sub.matches(env) {
			out = append(out, sub)
		}
	}
	return out
}

// trySend queues a frame without blocking. A full buffer means the write
// loop stopped draining (dead or slow peer); dropping keeps the sender's
// goroutine from wedging on a connection that will never recover.
func (c *Client) trySend(message []byte) bool {
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// WriteLoop pumps messages from the Send channel to the websocket connection
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
