package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/domain"
)

// NewMessageStore opens the message store selected by the configured driver.
// The returned store owns its backend; callers release it with Close.
func NewMessageStore(ctx context.Context, cfg config.Provider) (domain.MessageStore, error) {
	switch driver := cfg.GetStoreDriver(); driver {
	case config.DriverSurreal:
		conn := NewConnection(cfg)
		if err := conn.Connect(ctx); err != nil {
			return nil, WrapError(err, "failed to connect to surrealdb")
		}
		conn.StartMonitoring()
		slog.Info("Message store ready", "driver", driver, "url", redactDBURL(cfg.GetDBURL()))
		return NewSurrealMessageStore(conn, cfg), nil

	case config.DriverBadger:
		store, err := OpenBadgerMessageStore(cfg.GetBadgerPath())
		if err != nil {
			return nil, err
		}
		slog.Info("Message store ready", "driver", driver, "path", cfg.GetBadgerPath())
		return store, nil

	case config.DriverMemory:
		store, err := OpenBadgerMessageStore("")
		if err != nil {
			return nil, err
		}
		slog.Warn("Message store is in memory, history is lost on exit", "driver", driver)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
