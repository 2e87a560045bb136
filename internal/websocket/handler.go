package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/pubsub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Submitter accepts decoded client messages.
type Submitter interface {
	Submit(ctx context.Context, in domain.InboundMessage) (*domain.Message, error)
}

// Handler upgrades HTTP requests to WebSocket connections and runs their
// read and write loops.
type Handler struct {
	registry       *Registry
	submitter      Submitter
	publisher      pubsub.Publisher
	originPatterns []string
	readLimit      int64
	sendBuffer     int
	writeWait      time.Duration
	pingPeriod     time.Duration
}

// NewHandler creates a Handler. A nil publisher disables lifecycle events.
func NewHandler(registry *Registry, submitter Submitter, publisher pubsub.Publisher, cfg config.Provider) *Handler {
	if publisher == nil {
		publisher = pubsub.Discard
	}
	return &Handler{
		registry:       registry,
		submitter:      submitter,
		publisher:      publisher,
		originPatterns: cfg.GetAllowedOrigins(),
		readLimit:      cfg.GetMaxMessageSize(),
		sendBuffer:     cfg.GetSendBufferSize(),
		writeWait:      writeWait,
		pingPeriod:     pingPeriod,
	}
}

// Serve is the echo handler for the WebSocket endpoint. It returns when the
// connection is gone.
func (h *Handler) Serve(c echo.Context) error {
	log := middleware.FromContext(c.Request().Context())

	conn, err := websocket.Accept(c.Response(), c.Request(), h.acceptOptions())
	if err != nil {
		// Accept has already written the HTTP error response.
		log.Warn("Failed to upgrade connection to WebSocket", "error", err)
		return nil
	}
	// The read limit bounds memory per frame, not message text. A frame over
	// MAX_MESSAGE_SIZE closes the connection with StatusMessageTooBig, unlike
	// malformed frames, because the rest of it is never read.
	conn.SetReadLimit(h.readLimit)

	client := NewClient(conn, c.RealIP(), h.sendBuffer)
	log = log.With("component", "websocket", "connection_id", client.ID())

	h.registry.Register(client)
	log.Info("Client connected", "remote_addr", client.RemoteAddr(), "connections", h.registry.Len())

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		client.writePump(h.writeWait, h.pingPeriod, log)
	}()

	// The request context is not used for reads: it may end with the hijacked
	// connection and a submission in flight must still complete.
	ctx := events.WithConnectionID(context.WithoutCancel(c.Request().Context()), client.ID())
	h.publish(ctx, log, events.ConnectionOpened, client)

	h.readLoop(ctx, conn, log)

	h.registry.Unregister(client)
	client.Close()
	<-pumpDone
	log.Info("Client disconnected", "connections", h.registry.Len())

	h.publish(ctx, log, events.ConnectionClosed, client)
	return nil
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, log *slog.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug("WebSocket closed normally by client")
			case errors.Is(err, io.EOF) || status != -1:
				log.Debug("WebSocket closed", "status", status)
			default:
				log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		in, err := decodeInbound(data)
		if err != nil {
			log.Warn("Dropping malformed frame", "error", err, "size", len(data))
			continue
		}

		if _, err := h.submitter.Submit(ctx, in); err != nil {
			log.Error("Failed to relay message", "error", err)
		}
	}
}

func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	for _, p := range h.originPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
			opts.OriginPatterns = nil
			break
		}
	}
	return opts
}

func (h *Handler) publish(ctx context.Context, log *slog.Logger, event pubsub.Event[events.ConnectionEvent], client *Client) {
	payload := events.ConnectionEvent{
		ConnectionID: client.ID(),
		RemoteAddr:   client.RemoteAddr(),
		At:           time.Now().UTC(),
	}
	if err := pubsub.Publish(ctx, h.publisher, event, client.ID(), payload); err != nil {
		log.Error("Failed to publish connection event", "topic", event.Name(), "error", err)
	}
}

// decodeInbound parses a frame as a JSON object with optional string fields.
func decodeInbound(data []byte) (domain.InboundMessage, error) {
	var in domain.InboundMessage

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return in, fmt.Errorf("%w: not a JSON object", domain.ErrMalformedFrame)
	}
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return in, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	return in, nil
}
