// Package server is the HTTP surface: snapshot reads, upstream proxy
// queries, the ingest push endpoint, and the live update stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Yemba/vistatv-live-dashboard/internal/broadcast"
	"github.com/Yemba/vistatv-live-dashboard/internal/config"
	apperrors "github.com/Yemba/vistatv-live-dashboard/internal/errors"
	"github.com/Yemba/vistatv-live-dashboard/internal/ingest"
	"github.com/Yemba/vistatv-live-dashboard/internal/upstream"
)

// HealthChecker reports reachability of an optional backing service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	ingest      *ingest.Service
	gateway     *upstream.Gateway
	broadcaster *broadcast.Broadcaster
	startTime   time.Time

	// Optional backing services, nil when not configured.
	redisHealth    HealthChecker
	postgresHealth HealthChecker
}

func NewServer(cfg *config.Config, svc *ingest.Service, gateway *upstream.Gateway, broadcaster *broadcast.Broadcaster, redisHealth, postgresHealth HealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:           e,
		config:         cfg,
		ingest:         svc,
		gateway:        gateway,
		broadcaster:    broadcaster,
		startTime:      time.Now(),
		redisHealth:    redisHealth,
		postgresHealth: postgresHealth,
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// corsConfig permits cross-origin GETs on the computed JSON responses;
// the dashboard front end is served from elsewhere.
func corsConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}
}
