// Package presence tracks open relay connections and the authors posting on
// them, from the lifecycle events on the bus.
package presence

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/samber/lo"
)

// Snapshot is the presence state at one instant.
type Snapshot struct {
	Connections int      `json:"connections"`
	Authors     []string `json:"authors"`
}

// Service keeps, for each open connection, the set of usernames it posted as.
type Service struct {
	mu          sync.RWMutex
	connections map[string]map[string]struct{} // connectionID -> usernames
	logger      *slog.Logger
}

// NewService creates an empty presence service. Call Start to feed it.
func NewService() *Service {
	return &Service{
		connections: make(map[string]map[string]struct{}),
		logger:      slog.Default().With("service", "presence"),
	}
}

// Start subscribes to the connection and message topics.
func (s *Service) Start(ctx context.Context, subscriber pubsub.Subscriber) error {
	subscriptions := []struct {
		topic   string
		handler pubsub.Handler
	}{
		{events.ConnectionOpened.Name(), s.handleConnectionOpened},
		{events.ConnectionClosed.Name(), s.handleConnectionClosed},
		{events.MessagePersisted.Name(), s.handleMessagePersisted},
	}

	for _, sub := range subscriptions {
		if err := subscriber.Subscribe(ctx, sub.topic, sub.handler); err != nil {
			return err
		}
	}

	s.logger.Info("Presence service initialized")
	return nil
}

func (s *Service) handleConnectionOpened(ctx context.Context, msg pubsub.Message) error {
	event, err := pubsub.Decode(events.ConnectionOpened, msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.connections[event.ConnectionID]; !exists {
		s.connections[event.ConnectionID] = make(map[string]struct{})
	}
	s.logger.Debug("Connection opened", "connection_id", event.ConnectionID, "connections", len(s.connections))
	return nil
}

func (s *Service) handleConnectionClosed(ctx context.Context, msg pubsub.Message) error {
	event, err := pubsub.Decode(events.ConnectionClosed, msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, event.ConnectionID)
	s.logger.Debug("Connection closed", "connection_id", event.ConnectionID, "connections", len(s.connections))
	return nil
}

func (s *Service) handleMessagePersisted(ctx context.Context, msg pubsub.Message) error {
	message, err := pubsub.Decode(events.MessagePersisted, msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Messages from connections that are already gone, or from no connection
	// at all, do not make anyone present.
	authors, open := s.connections[msg.ConnectionID]
	if !open {
		return nil
	}
	authors[message.Username] = struct{}{}
	return nil
}

// Snapshot returns the number of open connections and the sorted, distinct
// usernames that posted on them.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authors := lo.Uniq(lo.FlatMap(lo.Values(s.connections), func(set map[string]struct{}, _ int) []string {
		return lo.Keys(set)
	}))
	slices.Sort(authors)

	return Snapshot{
		Connections: len(s.connections),
		Authors:     authors,
	}
}
