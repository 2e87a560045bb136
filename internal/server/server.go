package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/handlers"
	appmiddleware "github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/presence"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/relay"
	"github.com/nfrund/relay/internal/websocket"
)

// Dependencies holds everything the server needs that is created outside it.
type Dependencies struct {
	Config     config.Provider
	Store      domain.MessageStore
	Publisher  pubsub.Publisher
	Subscriber pubsub.Subscriber
	// Echo is optional; a new instance is created when nil.
	Echo *echo.Echo
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      config.Provider
	Store    domain.MessageStore
	PubSub   pubsub.Publisher
	Registry *websocket.Registry
	Engine   *relay.Engine
	Presence *presence.Service

	wsHandler       *websocket.Handler
	messageHandler  *handlers.MessageHandler
	presenceHandler *handlers.PresenceHandler

	// stopPresence ends the presence subscriptions.
	stopPresence context.CancelFunc
}

// New creates a new Server instance from its dependencies.
func New(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("server: message store is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = pubsub.Discard
	}

	e := deps.Echo
	if e == nil {
		e = echo.New()
	}
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger)
	e.Use(appmiddleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	setupErrorHandling(e)

	registry := websocket.NewRegistry()
	engine := relay.NewEngine(deps.Store, registry, deps.Publisher)

	presenceService := presence.NewService()
	presenceCtx, stopPresence := context.WithCancel(context.Background())
	if deps.Subscriber != nil {
		if err := presenceService.Start(presenceCtx, deps.Subscriber); err != nil {
			stopPresence()
			return nil, err
		}
	} else {
		slog.Warn("No subscriber configured, presence stays empty")
	}

	return &Server{
		E:               e,
		Cfg:             deps.Config,
		Store:           deps.Store,
		PubSub:          deps.Publisher,
		Registry:        registry,
		Engine:          engine,
		Presence:        presenceService,
		wsHandler:       websocket.NewHandler(registry, engine, deps.Publisher, deps.Config),
		messageHandler:  handlers.NewMessageHandler(engine),
		presenceHandler: handlers.NewPresenceHandler(presenceService),
		stopPresence:    stopPresence,
	}, nil
}
