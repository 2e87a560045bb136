// Package events defines the relay's lifecycle topics on the pubsub bus.
package events

import (
	"context"
	"time"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/pubsub"
)

// ConnectionEvent is published when a WebSocket connection opens or closes.
type ConnectionEvent struct {
	ConnectionID string    `json:"connectionId"`
	RemoteAddr   string    `json:"remoteAddr,omitempty"`
	At           time.Time `json:"at"`
}

var (
	ConnectionOpened = pubsub.NewEvent[ConnectionEvent](
		"relay.connection.opened",
		"Published after a WebSocket connection is registered",
	)

	ConnectionClosed = pubsub.NewEvent[ConnectionEvent](
		"relay.connection.closed",
		"Published after a WebSocket connection is unregistered",
	)

	// MessagePersisted carries the canonical message after it was broadcast.
	// The bus message's ConnectionID names the submitting connection.
	MessagePersisted = pubsub.NewEvent[domain.Message](
		"relay.message.persisted",
		"Published after a message is stored and broadcast",
	)
)

type connectionIDKey struct{}

// WithConnectionID returns a context carrying the id of the connection a
// submission came from.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey{}, id)
}

// ConnectionIDFrom returns the connection id stored by WithConnectionID, or "".
func ConnectionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(connectionIDKey{}).(string)
	return id
}
