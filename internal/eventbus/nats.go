/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/cadence/internal/events"
)

const natsSubjectPrefix = "cadence.events."

// NATSBus implements a NATS-backed event bus. Every published event also
// reaches local subscribers through the in-memory bus, so a lost NATS
// connection degrades to single-node delivery instead of silence.
type NATSBus struct {
	conn     *nats.Conn
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus.
// Falls back to in-memory delivery if NATS is unavailable.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) (*NATSBus, error) {
	logger = logger.With().Str("component", "nats_bus").Logger()

	nb := &NATSBus{
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   generateNodeID(),
		subs:     make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("cadence-" + nb.nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS unavailable, using in-memory event bus")
		return nb, nil
	}

	nb.conn = conn
	logger.Info().Str("url", cfg.URL).Str("node_id", nb.nodeID).Msg("NATS event bus initialized")
	return nb, nil
}

// Subscribe registers a subscriber for an event type. The first subscriber
// for a type also opens the NATS subscription bridging remote events in.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.fallback.Subscribe(eventType)

	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()

	if _, exists := nb.subs[eventType]; exists {
		return sub
	}

	subject := natsSubjectPrefix + string(eventType)
	natsSub, err := nb.conn.Subscribe(subject, func(msg *nats.Msg) {
		incoming, err := unmarshalNATSMessage(msg.Data)
		if err != nil {
			nb.logger.Error().Err(err).Str("subject", subject).Msg("failed to unmarshal NATS message")
			return
		}
		// Our own publishes already reached local subscribers.
		if incoming.NodeID == nb.nodeID {
			return
		}
		nb.fallback.Publish(incoming.EventType, incoming.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("subject", subject).Msg("NATS subscribe failed")
		return sub
	}

	nb.subs[eventType] = natsSub
	nb.logger.Debug().Str("subject", subject).Msg("NATS subscription opened")
	return sub
}

// Publish sends an event payload to all subscribers (local and remote).
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)

	if nb.conn == nil {
		return
	}

	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}

	if err := nb.conn.Publish(natsSubjectPrefix+string(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.fallback.Unsubscribe(eventType, sub)
}

// Close drains the NATS connection and closes all subscriptions.
func (nb *NATSBus) Close() error {
	nb.mu.Lock()
	for eventType, natsSub := range nb.subs {
		if err := natsSub.Unsubscribe(); err != nil {
			nb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe failed")
		}
	}
	nb.subs = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	if nb.conn != nil {
		if err := nb.conn.Drain(); err != nil {
			return fmt.Errorf("drain nats connection: %w", err)
		}
		nb.conn.Close()
	}
	return nil
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// marshalNATSMessage converts payload to NATS message format.
func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

// unmarshalNATSMessage parses a NATS message.
func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
