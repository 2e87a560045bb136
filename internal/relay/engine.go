// Package relay turns inbound client messages into persisted, broadcast
// messages.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/relay/internal/color"
	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/websocket"
)

// Engine normalizes, colors, persists and broadcasts submissions one at a
// time, so every connection sees messages in persistence order.
type Engine struct {
	store     domain.MessageStore
	registry  *websocket.Registry
	publisher pubsub.Publisher
	logger    *slog.Logger

	// mu is held from normalization through broadcast.
	mu sync.Mutex
}

var _ websocket.Submitter = (*Engine)(nil)

// NewEngine creates an Engine. A nil publisher disables persisted events.
func NewEngine(store domain.MessageStore, registry *websocket.Registry, publisher pubsub.Publisher) *Engine {
	if publisher == nil {
		publisher = pubsub.Discard
	}
	return &Engine{
		store:     store,
		registry:  registry,
		publisher: publisher,
		logger:    slog.Default().With("component", "relay"),
	}
}

// Submit persists in and broadcasts the stored message to every registered
// connection. A store failure, during the color lookup or the append, aborts
// the submission before anything is broadcast.
func (e *Engine) Submit(ctx context.Context, in domain.InboundMessage) (*domain.Message, error) {
	msg, err := e.submit(ctx, in)
	if err != nil {
		e.logger.ErrorContext(ctx, "Submission aborted", "error", err, "connection_id", events.ConnectionIDFrom(ctx))
		return nil, err
	}

	if err := pubsub.Publish(ctx, e.publisher, events.MessagePersisted, events.ConnectionIDFrom(ctx), *msg); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish persisted event", "id", msg.ID, "error", err)
	}
	return msg, nil
}

func (e *Engine) submit(ctx context.Context, in domain.InboundMessage) (*domain.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in = in.Normalize()

	c, err := e.colorFor(ctx, in.Username)
	if err != nil {
		return nil, err
	}

	msg, err := e.store.AppendMessage(ctx, in.Username, in.Text, c)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	e.broadcast(ctx, msg)
	return msg, nil
}

// colorFor reuses the author's last color, falling back to the name hash for
// new authors.
func (e *Engine) colorFor(ctx context.Context, username string) (string, error) {
	last, err := e.store.FindLatestByAuthor(ctx, username)
	if err != nil {
		return "", fmt.Errorf("look up author color: %w", err)
	}
	if last != nil && last.Color != "" {
		return last.Color, nil
	}
	return color.For(username), nil
}

// broadcast serializes msg once and queues it on every connection in a
// registry snapshot. Connections that refuse it are unregistered and closed.
func (e *Engine) broadcast(ctx context.Context, msg *domain.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to encode stored message", "id", msg.ID, "error", err)
		return
	}

	peers := e.registry.Snapshot()
	delivered := 0
	for _, p := range peers {
		if p.Send(payload) {
			delivered++
			continue
		}
		if e.registry.Unregister(p) {
			e.logger.WarnContext(ctx, "Dropping connection", "connection_id", p.ID(), "error", domain.ErrSendFailure)
		}
		p.Close()
	}

	e.logger.DebugContext(ctx, "Message broadcast", "id", msg.ID, "username", msg.Username, "recipients", delivered, "snapshot", len(peers))
}

// History returns every stored message, oldest first.
func (e *Engine) History(ctx context.Context) ([]*domain.Message, error) {
	return e.store.ListAllOrderedByTime(ctx)
}
