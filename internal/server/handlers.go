package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Yemba/vistatv-live-dashboard/internal/cache"
	apperrors "github.com/Yemba/vistatv-live-dashboard/internal/errors"
)

// maxIngestBytes bounds a single pushed observation.
const maxIngestBytes = 1 << 20

func (s *Server) handleOverviewSnapshot(c echo.Context) error {
	return s.snapshotResponse(c, cache.OverviewScope)
}

func (s *Server) handleChannelSnapshot(c echo.Context) error {
	channel := c.Param("channel")
	if channel == "" {
		return apperrors.ValidationError("channel is required")
	}
	return s.snapshotResponse(c, channel)
}

func (s *Server) snapshotResponse(c echo.Context, scope string) error {
	rec, ok, err := s.ingest.Snapshot(c.Request().Context(), scope)
	if err != nil {
		return err
	}
	if !ok {
		// No data yet is an expected state, not an error; the dashboard
		// renders a placeholder on an empty body.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, rec)
}

// handleProxy forwards discovery and history queries upstream, relaying
// the upstream body verbatim. The gateway turns every failure into a
// structured external error, which the error middleware renders as the
// JSON error envelope with a 502.
func (s *Server) handleProxy(c echo.Context) error {
	req := c.Request()

	path := strings.TrimPrefix(req.URL.Path, "/api")
	if req.URL.RawQuery != "" {
		path += "?" + req.URL.RawQuery
	}

	result, err := s.gateway.Forward(req.Context(), req.Method, path)
	if err != nil {
		return err
	}
	return c.Blob(result.Status, result.ContentType, result.Body)
}

func (s *Server) handleIngest(c echo.Context) error {
	channel := c.Param("channel")
	if channel == "" {
		return apperrors.ValidationError("channel is required")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxIngestBytes))
	if err != nil {
		return apperrors.ValidationError("failed to read observation payload")
	}

	rec, err := s.ingest.Ingest(c.Request().Context(), channel, payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, rec)
}

// streamInfo describes the live update endpoint for dashboard clients.
type streamInfo struct {
	Host string `json:"host"`
	Path string `json:"path"`
}

func (s *Server) handleStreamInfo(c echo.Context) error {
	host := s.config.PublicHost
	if host == "" {
		host = c.Request().Host
	}
	return c.JSON(http.StatusOK, streamInfo{
		Host: host,
		Path: "/ws/stats/{scope}",
	})
}
