package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nfrund/relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := NewMessageStore(ctx, &config.Config{StoreDriver: config.DriverMemory})
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &BadgerMessageStore{}, store)
		msg, err := store.AppendMessage(ctx, "Alice", "hi", "#03c6a6")
		require.NoError(t, err)
		assert.Equal(t, "1", msg.ID)
	})

	t.Run("badger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay")
		store, err := NewMessageStore(ctx, &config.Config{StoreDriver: config.DriverBadger, BadgerPath: path})
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &BadgerMessageStore{}, store)
		assert.DirExists(t, path)
	})

	t.Run("surreal without a reachable server", func(t *testing.T) {
		if testing.Short() {
			t.Skip("dials the network")
		}
		cfg := &config.Config{
			StoreDriver: config.DriverSurreal,
			DBUrl:       "ws://127.0.0.1:1/rpc",
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		_, err := NewMessageStore(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewMessageStore(ctx, &config.Config{StoreDriver: "postgres"})
		assert.ErrorContains(t, err, `unknown store driver "postgres"`)
	})
}
