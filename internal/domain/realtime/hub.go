package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dsatschool/delta-api/internal/domain/delta"
	"github.com/dsatschool/delta-api/internal/pkg/metrics"
)

// WalletChannel carries wallet events between API instances.
const WalletChannel = "delta:wallet_events"

// Size of each connection's outgoing buffer.
const sendBuffer = 64

type envelope struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one websocket client of a user
type Connection struct {
	UserID uuid.UUID
	Send   chan []byte
}

func NewConnection(userID uuid.UUID) *Connection {
	return &Connection{UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Hub fans wallet events out to connected users. With Redis, events reach
// users connected to any instance.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
	publishFn  func(ctx context.Context, payload []byte) error
}

// NewHub creates a hub. A nil client keeps delivery local to this instance.
func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, WalletChannel)
		h.publishFn = func(ctx context.Context, payload []byte) error {
			return redisClient.Publish(ctx, WalletChannel, payload).Err()
		}
	}

	return h
}

// Run processes registrations until Shutdown (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			metrics.WebsocketConnections.Inc()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("wallet listener connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if conns[conn] {
					delete(conns, conn)
					close(conn.Send)
					metrics.WebsocketConnections.Dec()
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
				}
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("wallet listener disconnected")
		}
	}
}

func (h *Hub) runSubscriber() {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemote(msg.Payload)
		}
	}
}

func (h *Hub) handleRemote(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		metrics.EventsPublished.WithLabelValues("remote", "malformed").Inc()
		return
	}
	if env.SenderInstanceID == h.instanceID {
		return
	}
	userID, err := uuid.Parse(env.UserID)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("remote", "malformed").Inc()
		return
	}
	h.deliver("remote", userID, env.Payload)
}

func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Publish implements delta.Publisher. The event is delivered to local
// connections and forwarded to other instances through Redis.
func (h *Hub) Publish(ctx context.Context, event delta.WalletEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.deliver("local", event.UserID, data)

	if h.publishFn == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{
		UserID:           event.UserID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return err
	}
	if err := h.publishFn(ctx, payload); err != nil {
		metrics.EventsPublished.WithLabelValues("local", "redis_error").Inc()
		return err
	}
	return nil
}

func (h *Hub) deliver(origin string, userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.connections[userID]
	if !ok {
		metrics.EventsPublished.WithLabelValues(origin, "no_listener").Inc()
		return
	}
	for conn := range conns {
		select {
		case conn.Send <- data:
			metrics.EventsPublished.WithLabelValues(origin, "sent").Inc()
		default:
			metrics.EventsPublished.WithLabelValues(origin, "dropped").Inc()
			log.Warn().Str("user_id", userID.String()).Msg("wallet event buffer full")
		}
	}
}

// ConnectionCount returns the number of local connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown stops the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
