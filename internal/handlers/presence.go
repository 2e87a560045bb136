package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/relay/internal/presence"
)

// PresenceReader reports who is connected.
type PresenceReader interface {
	Snapshot() presence.Snapshot
}

// PresenceHandler handles presence-related HTTP requests.
type PresenceHandler struct {
	presenceService PresenceReader
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(presenceService PresenceReader) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// GetPresence returns the open connection count and the authors seen on them.
func (h *PresenceHandler) GetPresence(c echo.Context) error {
	if h.presenceService == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    CodeInternal,
			Message: "presence service not available",
		})
	}
	return c.JSON(http.StatusOK, h.presenceService.Snapshot())
}
