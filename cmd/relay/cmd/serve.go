package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/database"
	"github.com/nfrund/relay/internal/logging"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the HTTP server with the WebSocket endpoint (/ws), the message
history (/api/messages), presence (/api/presence) and health (/health) routes.

Configuration is read from the environment and an optional .env file.
SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: runServe,
}

// initLogging loads .env before building the default logger so LOG_FORMAT
// and LOG_LEVEL from the file apply.
func initLogging() *slog.Logger {
	envErr := godotenv.Load()
	logger := logging.New()
	if envErr != nil {
		logger.Debug("No .env file found, relying on environment variables")
	}
	return logger
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	store, err := database.NewMessageStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}

	bus := pubsub.NewWatermillBridge()

	s, err := server.New(server.Dependencies{
		Config:     cfg,
		Store:      store,
		Publisher:  bus,
		Subscriber: bus,
	})
	if err != nil {
		_ = bus.Close()
		_ = store.Close()
		return err
	}
	s.RegisterRoutes()

	slog.Info("Starting relay", "addr", cfg.GetServerAddr(), "store", cfg.GetStoreDriver(), "version", version)
	return s.Run()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
