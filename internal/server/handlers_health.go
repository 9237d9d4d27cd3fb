package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Yemba/vistatv-live-dashboard/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name    string
		checker HealthChecker
	}{
		{"redis", s.redisHealth},
		{"postgres", s.postgresHealth},
	}

	for _, check := range checks {
		if check.checker == nil {
			continue
		}
		if err := check.checker.Ping(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
