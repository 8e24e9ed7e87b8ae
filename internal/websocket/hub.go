package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 10 * time.Second

type tokenParser interface {
	ParseToken(token string) (uuid.UUID, string, error)
}

// Hub pushes admin events from a Redis channel to every connected admin
// socket. The channel is subscribed while at least one admin is connected.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]uuid.UUID
	redisClient *redis.Client
	channel     string
	tokens      tokenParser
	upgrader    websocket.Upgrader
	cancel      context.CancelFunc
}

func NewHub(redisClient *redis.Client, channel string, tokens tokenParser, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]uuid.UUID),
		redisClient: redisClient,
		channel:     channel,
		tokens:      tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket upgrades, so the token comes in the query.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, role, err := h.tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.register(userID, conn)

	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(userID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = userID

	if len(h.connections) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.subscribe(ctx)
	}

	log.Info().Str("user_id", userID.String()).Int("connections", len(h.connections)).Msg("admin websocket connected")
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	userID, ok := h.connections[conn]
	if !ok {
		return
	}
	delete(h.connections, conn)

	if len(h.connections) == 0 && h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	log.Info().Str("user_id", userID.String()).Msg("admin websocket disconnected")
}

func (h *Hub) subscribe(ctx context.Context) {
	pubsub := h.redisClient.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

// broadcast runs only on the subscriber goroutine, so each connection has a single writer.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("admin websocket write failed")
		}
	}
}

// ConnectionCount reports how many admin sockets are open.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close disconnects every socket and stops the subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
