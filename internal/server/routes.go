package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/ws", s.wsHandler.Serve)

	api := s.E.Group("/api")
	api.GET("/messages", s.messageHandler.List)
	api.GET("/presence", s.presenceHandler.GetPresence)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
