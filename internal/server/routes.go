package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// JSON API, readable cross-origin by the dashboard front end
	api := s.echo.Group("/api", middleware.CORSWithConfig(corsConfig()))
	api.GET("/snapshot", s.handleOverviewSnapshot)
	api.GET("/snapshot/:channel", s.handleChannelSnapshot)
	api.GET("/channels", s.handleProxy)
	api.GET("/channels/:channel/history", s.handleProxy)
	api.GET("/stream-info", s.handleStreamInfo)

	// Push ingestion from the stats producer
	s.echo.POST("/ingest/:channel", s.handleIngest)

	// Live update stream
	s.echo.GET("/ws/stats/:scope", s.handleWebSocket)
}
