// Package server exposes the HTTP surface: the client websocket endpoint,
// audio file serving, health probes and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vanhieptech/sigma-sub000/internal/config"
	apperrors "github.com/vanhieptech/sigma-sub000/internal/errors"
	"github.com/vanhieptech/sigma-sub000/internal/registry"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	registry  *registry.Registry
	log       *slog.Logger
	startTime time.Time

	// redisPing is set when Redis backs the dedup store; readiness
	// reports unhealthy when it fails.
	redisPing func(context.Context) error
}

func NewServer(cfg *config.Config, reg *registry.Registry, redisPing func(context.Context) error, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  reg,
		log:       log,
		startTime: time.Now(),
		redisPing: redisPing,
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	s.log.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.Close()
	return s.echo.Shutdown(ctx)
}
