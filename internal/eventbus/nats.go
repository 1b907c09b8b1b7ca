/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus across processes.
// The admin server and the player terminals each run their own bus; the
// NATS bridge forwards selected event types between them so a playlist
// mutation on the admin side surfaces as a local bus event on every
// terminal.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const subjectPrefix = "fleetsign.events."

// originKey marks payloads injected from a remote node so the forward
// loop does not echo them back out.
const originKey = "_origin"

// natsMessage is the wire envelope.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

// NATSBridge connects a local bus to a NATS server.
type NATSBridge struct {
	conn    *nats.Conn
	bus     *events.Bus
	nodeID  string
	forward []events.EventType
	logger  zerolog.Logger
	sub     *nats.Subscription
}

// NewNATSBridge connects to NATS. forward lists the local event types
// published out to other nodes; all remote events are injected locally.
func NewNATSBridge(url string, bus *events.Bus, forward []events.EventType, logger zerolog.Logger) (*NATSBridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	bridge := &NATSBridge{
		conn:    conn,
		bus:     bus,
		nodeID:  uuid.NewString(),
		forward: forward,
		logger:  logger,
	}

	sub, err := conn.Subscribe(subjectPrefix+">", bridge.receive)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe nats: %w", err)
	}
	bridge.sub = sub

	logger.Info().Str("url", url).Str("node_id", bridge.nodeID).Msg("nats event bridge initialized")
	return bridge, nil
}

// Run forwards local events to NATS until context cancellation.
func (b *NATSBridge) Run(ctx context.Context) error {
	type tagged struct {
		eventType events.EventType
		ch        events.Subscriber
	}

	subs := make([]tagged, 0, len(b.forward))
	cases := make(chan struct {
		eventType events.EventType
		payload   events.Payload
	}, 64)

	for _, eventType := range b.forward {
		ch := b.bus.Subscribe(eventType)
		subs = append(subs, tagged{eventType: eventType, ch: ch})
		go func(eventType events.EventType, ch events.Subscriber) {
			for payload := range ch {
				select {
				case cases <- struct {
					eventType events.EventType
					payload   events.Payload
				}{eventType, payload}:
				default:
				}
			}
		}(eventType, ch)
	}
	defer func() {
		for _, s := range subs {
			b.bus.Unsubscribe(s.eventType, s.ch)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-cases:
			if _, remote := item.payload[originKey]; remote {
				continue
			}
			b.publish(item.eventType, item.payload)
		}
	}
}

func (b *NATSBridge) publish(eventType events.EventType, payload events.Payload) {
	data, err := json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    b.nodeID,
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("marshal nats message failed")
		return
	}
	if err := b.conn.Publish(subjectPrefix+string(eventType), data); err != nil {
		b.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("nats publish failed")
		return
	}
	b.logger.Debug().Str("event_type", string(eventType)).Msg("event forwarded to nats")
}

// receive injects remote events into the local bus.
func (b *NATSBridge) receive(msg *nats.Msg) {
	var envelope natsMessage
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		b.logger.Error().Err(err).Msg("unmarshal nats message failed")
		return
	}
	if envelope.NodeID == b.nodeID {
		return
	}

	payload := envelope.Payload
	if payload == nil {
		payload = events.Payload{}
	}
	payload[originKey] = envelope.NodeID
	b.bus.Publish(envelope.EventType, payload)
}

// Close drains the subscription and connection.
func (b *NATSBridge) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}
