package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Yemba/vistatv-live-dashboard/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served cross-origin.
		return true
	},
}

// handleWebSocket subscribes a dashboard client to a scope's updates.
// No replay happens here: the client fetches the current snapshot over
// the JSON API first, then relies on pushes.
func (s *Server) handleWebSocket(c echo.Context) error {
	scope := c.Param("scope")
	if scope == "" {
		return apperrors.ValidationError("scope is required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := s.broadcaster.Register(scope, conn); err != nil {
		slog.Warn("Failed to register subscriber", "scope", scope, "error", err)
		return nil
	}

	// Read pump, blocks until the connection closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.broadcaster.Unregister(scope, conn)
	return nil
}
