package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Synthesized audio, referenced by aiResponse frames
	s.echo.Static("/audio", s.config.AudioCacheDir)

	// Client websocket channel
	s.echo.GET("/ws", s.handleWebSocket)
}
