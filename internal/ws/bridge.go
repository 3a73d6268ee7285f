package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tablevox/tablevox/internal/voice"
	"github.com/tablevox/tablevox/pkg/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Bridge fans dispatched command signals, notifications, and navigation
// pushes out to the screens connected for each restaurant, and feeds route
// reports and utterances from those screens back into the voice session.
type Bridge struct {
	sessions   *voice.SessionRegistry
	subscriber events.Subscriber
	logger     aqm.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
}

func NewBridge(sessions *voice.SessionRegistry, subscriber events.Subscriber, logger aqm.Logger) *Bridge {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Bridge{
		sessions:   sessions,
		subscriber: subscriber,
		logger:     logger,
		clients:    make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Start subscribes to the voice topics and begins forwarding to connected
// screens.
func (b *Bridge) Start(ctx context.Context) error {
	if b.subscriber == nil {
		return fmt.Errorf("ws bridge subscriber not configured")
	}

	topics := []string{event.CommandsTopic, event.NotificationsTopic, event.NavigationTopic}
	for _, topic := range topics {
		if err := b.subscriber.Subscribe(ctx, topic, b.forward); err != nil {
			return fmt.Errorf("cannot subscribe to %s: %w", topic, err)
		}
	}

	b.logger.Info("ws bridge started", "topics", len(topics))
	return nil
}

// forward delivers a bus event to every screen attached to its restaurant.
func (b *Bridge) forward(ctx context.Context, msg []byte) error {
	var envelope struct {
		RestaurantID string `json:"restaurant_id"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		b.logger.Info("invalid bus event", "error", err)
		return nil
	}

	restaurantID, err := uuid.Parse(envelope.RestaurantID)
	if err != nil {
		b.logger.Debug("bus event without restaurant id")
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients[restaurantID] {
		select {
		case c.send <- msg:
		default:
			b.logger.Info("dropping message for slow screen", "restaurant_id", envelope.RestaurantID)
		}
	}
	return nil
}

func (b *Bridge) RegisterRoutes(r chi.Router) {
	r.Get("/restaurants/{restaurantID}/voice/ws", b.HandleWS)
}

func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "restaurantID"))
	if err != nil || restaurantID == uuid.Nil {
		aqm.RespondError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	session, err := b.sessions.Attach(r.Context(), restaurantID)
	if err != nil {
		aqm.RespondError(w, http.StatusInternalServerError, "Could not start voice session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("cannot upgrade connection", "error", err)
		return
	}

	c := &client{
		bridge:       b,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		restaurantID: restaurantID,
		session:      session,
	}

	b.add(c)
	go c.writePump()
	go c.readPump()
}

func (b *Bridge) add(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[c.restaurantID] == nil {
		b.clients[c.restaurantID] = make(map[*client]struct{})
	}
	b.clients[c.restaurantID][c] = struct{}{}
}

func (b *Bridge) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.clients[c.restaurantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(b.clients, c.restaurantID)
		}
	}
}

type client struct {
	bridge       *Bridge
	conn         *websocket.Conn
	send         chan []byte
	restaurantID uuid.UUID
	session      *voice.Dispatcher
}

// screenMessage is what a connected screen sends back: route reports as it
// navigates, and recognized utterances from the microphone pipeline.
type screenMessage struct {
	Type  string `json:"type"`
	Route string `json:"route,omitempty"`
	Text  string `json:"text,omitempty"`
}

func (c *client) readPump() {
	defer func() {
		c.bridge.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.bridge.logger.Info("screen connection error", "error", err)
			}
			break
		}
		c.handleMessage(raw)
	}
}

func (c *client) handleMessage(raw []byte) {
	var msg screenMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.bridge.logger.Debug("invalid screen message", "error", err)
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "route":
		if msg.Route != "" {
			c.session.ReportRoute(ctx, msg.Route)
		}
	case "utterance":
		if msg.Text != "" {
			if err := c.session.HandleUtterance(ctx, msg.Text); err != nil {
				c.bridge.logger.Info("utterance not executed", "restaurant_id", c.restaurantID.String(), "error", err)
			}
		}
	default:
		c.bridge.logger.Debug("unknown screen message type", "type", msg.Type)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
