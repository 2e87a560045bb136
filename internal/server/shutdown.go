package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Shutdown stops accepting requests, closes every WebSocket connection, then
// releases the bus and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// Hijacked WebSocket connections are not tracked by the HTTP server.
	s.Registry.CloseAll()
	s.stopPresence()

	if err := s.PubSub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pubsub close: %w", err))
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) == 0 {
		slog.Info("Server stopped cleanly")
	}
	return errors.Join(errs...)
}
