package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/middleware"
)

// HistoryReader lists stored messages, oldest first.
type HistoryReader interface {
	History(ctx context.Context) ([]*domain.Message, error)
}

// MessageHandler serves the message history.
type MessageHandler struct {
	history HistoryReader
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(history HistoryReader) *MessageHandler {
	return &MessageHandler{history: history}
}

// List returns every stored message as a JSON array in broadcast order.
func (h *MessageHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	messages, err := h.history.History(ctx)
	if err != nil {
		middleware.FromContext(ctx).Error("Failed to load message history", "error", err)
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Code:    CodeStoreUnavailable,
				Message: "message history is temporarily unavailable",
			})
		}
		return err
	}

	if messages == nil {
		messages = []*domain.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}
