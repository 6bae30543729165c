package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

const readTimeout = 60 * time.Second

// clientMessage is what a client sends over the stream: a subscribe or
// unsubscribe request for a named view with an optional context filter.
type clientMessage struct {
	Action  string            `json:"action"`
	Name    string            `json:"name"`
	Context map[string]string `json:"context,omitempty"`
}

type ackMessage struct {
	Type         string `json:"type"`
	Subscription string `json:"subscription,omitempty"`
	Name         string `json:"name"`
	Error        string `json:"error,omitempty"`
}

type Handler struct {
	auth        *services.AuthService
	subscribers *services.SubscriberService
	views       *ViewRegistry
	hub         *Hub
	serverID    uuid.UUID
	log         *logger.Logger
}

func NewHandler(
	auth *services.AuthService,
	subscribers *services.SubscriberService,
	views *ViewRegistry,
	hub *Hub,
	serverID uuid.UUID,
	log *logger.Logger,
) *Handler {
	return &Handler{
		auth:        auth,
		subscribers: subscribers,
		views:       views,
		hub:         hub,
		serverID:    serverID,
		log:         log,
	}
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(userID, conn)
	h.hub.Register(client)
	go client.WriteLoop()

	h.readLoop(c.Request.Context(), client)

	// Drop the connection's subscriber records before acknowledging the
	// disconnect so other servers stop counting this connection as a viewer.
	dropCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.subscribers.DropConnection(dropCtx, h.serverID, client.ID); err != nil {
		h.log.Warnf("drop connection %s: %v", client.ID, err)
	}
	h.hub.Unregister(client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendAck(client, ackMessage{Type: "error", Name: msg.Name, Error: "malformed message"})
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.handleSubscribe(ctx, client, msg)
		case "unsubscribe":
			h.handleUnsubscribe(ctx, client, msg)
		default:
			h.sendAck(client, ackMessage{Type: "error", Name: msg.Name, Error: "unknown action"})
		}
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, client *Client, msg clientMessage) {
	source, err := h.views.Resolve(msg.Name)
	if err != nil {
		h.sendAck(client, ackMessage{Type: "error", Name: msg.Name, Error: "unknown view"})
		return
	}

	record, err := h.subscribers.Subscribe(ctx, h.serverID, client.ID, client.UserID, msg.Name, msg.Context)
	if err != nil {
		h.sendAck(client, ackMessage{Type: "error", Name: msg.Name, Error: "subscribe failed"})
		return
	}

	sub := &Subscription{
		SubscriberID: record.ID.String(),
		Name:         msg.Name,
		Context:      msg.Context,
	}
	h.hub.Subscribe(client, sub)

	// Replay current state before the ready ack so the client sees a
	// consistent snapshot followed by incremental changes.
	initial, err := source(ctx, msg.Context)
	if err != nil {
		h.log.Warnf("initial replay for view %s: %v", msg.Name, err)
	}
	for _, env := range initial {
		data, err := json.Marshal(dataMessage{Type: "data", Subscription: sub.SubscriberID, Envelope: env})
		if err != nil {
			continue
		}
		if !client.trySend(data) {
			// the write loop stopped draining; abandon the replay so the read
			// goroutine can observe the disconnect and release the subscription
			h.log.Warnf("replay aborted for slow websocket client %s", client.ID)
			break
		}
	}
	h.sendAck(client, ackMessage{Type: "ready", Subscription: sub.SubscriberID, Name: msg.Name})
}

func (h *Handler) handleUnsubscribe(ctx context.Context, client *Client, msg clientMessage) {
	sub := client.removeSubscription((&Subscription{Name: msg.Name, Context: msg.Context}).Key())
	if sub == nil {
		h.sendAck(client, ackMessage{Type: "error", Name: msg.Name, Error: "not subscribed"})
		return
	}
	if id, err := uuid.Parse(sub.SubscriberID); err == nil {
		if err := h.subscribers.Unsubscribe(ctx, id); err != nil {
			h.log.Warnf("unsubscribe %s: %v", sub.SubscriberID, err)
		}
	}
	h.sendAck(client, ackMessage{Type: "stopped", Subscription: sub.SubscriberID, Name: msg.Name})
}

func (h *Handler) sendAck(client *Client, ack ackMessage) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	client.trySend(data)
}
