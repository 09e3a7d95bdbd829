package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/observability"
)

const realtimeSendBufferSize = 32

// Realtime event names delivered to connected clients.
const (
	EventReceiveMessage       = "receive_message"
	EventUserTyping           = "user_typing"
	EventRequestStatusChanged = "request_status_changed"
)

// RealtimeEvent is the frame written to websocket clients.
type RealtimeEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// EventPublisher is the fan-out surface the domain services depend on.
// Delivery is best-effort; the durable stores remain the source of truth.
type EventPublisher interface {
	PublishToUser(ctx context.Context, userID uint, event string, data interface{})
}

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	UserID        uint
	Role          string
	CorrelationID string
	Context       context.Context
}

// RealtimeService manages websocket connections keyed by user id and
// replicates events across nodes.
type RealtimeService interface {
	EventPublisher
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *realtimeHub
	nodeID      string
}

// realtimeHub tracks active websocket clients per user.
type realtimeHub struct {
	mu    sync.RWMutex
	users map[uint]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    *websocket.Conn
	send    chan RealtimeEvent
	options RealtimeConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
}

type realtimeEnvelope struct {
	Source string          `json:"source"`
	UserID uint            `json:"user_id"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// NewRealtimeService creates the hub. Redis and NATS connections are both
// optional; without them events stay node-local.
func NewRealtimeService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RealtimeService {
	hub := &realtimeHub{
		users: make(map[uint]map[*realtimeClient]struct{}),
		log:   logger.With().Str("component", "realtime_hub").Logger(),
	}

	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &realtimeService{
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	client := &realtimeClient{
		conn:    conn,
		send:    make(chan RealtimeEvent, realtimeSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.RealtimeConnectionsTotal().Inc()

	go client.writer()
	client.reader()
}

// PublishToUser delivers the event to local connections of the user and
// replicates it to peer nodes. Failures are logged, never surfaced.
func (s *realtimeService) PublishToUser(ctx context.Context, userID uint, event string, data interface{}) {
	s.hub.deliver(userID, RealtimeEvent{Event: event, Data: data})
	observability.RealtimeEventsTotal().WithLabelValues(event).Inc()

	if err := s.replicate(ctx, userID, event, data); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Uint("user_id", userID).Msg("failed to replicate realtime event")
	}
}

func (s *realtimeService) replicate(ctx context.Context, userID uint, event string, data interface{}) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(realtimeEnvelope{
		Source: s.nodeID,
		UserID: userID,
		Event:  event,
		Data:   raw,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "helphub-realtime", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleEnvelope(data []byte) {
	var envelope realtimeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime envelope")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.hub.deliver(envelope.UserID, RealtimeEvent{Event: envelope.Event, Data: envelope.Data})
	observability.RealtimeEventsTotal().WithLabelValues(envelope.Event).Inc()
}

func (h *realtimeHub) register(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.options.UserID
	if _, exists := h.users[userID]; !exists {
		h.users[userID] = make(map[*realtimeClient]struct{})
	}
	h.users[userID][client] = struct{}{}
	h.log.Debug().Uint("user_id", userID).Msg("realtime client connected")
}

func (h *realtimeHub) unregister(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.options.UserID
	if clients, ok := h.users[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.users, userID)
		}
	}
	h.log.Debug().Uint("user_id", userID).Msg("realtime client disconnected")
}

func (h *realtimeHub) deliver(userID uint, event RealtimeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.users[userID]
	for client := range clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("user_id", userID).Str("event", event.Event).Msg("dropping realtime event for slow client")
		}
	}
}

// reader only watches for the close frame; clients act through the REST API.
func (c *realtimeClient) reader() {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
