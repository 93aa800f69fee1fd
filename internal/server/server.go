// Package server owns the Fiber application and the background workers that
// live as long as it does.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tomasdev42/crypto-portfolio/internal/config"
	"github.com/tomasdev42/crypto-portfolio/internal/metrics"
	"github.com/tomasdev42/crypto-portfolio/internal/middleware"
	"github.com/tomasdev42/crypto-portfolio/internal/profile"
	"github.com/tomasdev42/crypto-portfolio/internal/routes"
	"github.com/tomasdev42/crypto-portfolio/internal/scheduler"
)

// Server wraps the Fiber application, the snapshot scheduler and the realtime
// broker.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	scheduler *scheduler.Scheduler
	deps      *routes.App
	logger    *slog.Logger

	stopBroker context.CancelFunc
	brokerDone chan struct{}
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    profile.MaxPictureSize + 1<<20,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	m := metrics.New()
	deps, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Metrics: m})
	if err != nil {
		return nil, err
	}

	return &Server{
		app:       app,
		cfg:       cfg,
		scheduler: scheduler.New(deps.Users, deps.Portfolio, m, logger),
		deps:      deps,
		logger:    logger,
	}, nil
}

// App returns the underlying Fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Start launches the background workers without serving HTTP.
func (s *Server) Start() error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	if s.deps.Broker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopBroker = cancel
		s.brokerDone = make(chan struct{})
		go func() {
			defer close(s.brokerDone)
			if err := s.deps.Broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("realtime broker stopped", slog.Any("error", err))
			}
		}()
	}
	return nil
}

// Listen starts the background workers and serves HTTP until Shutdown.
func (s *Server) Listen() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then stops the scheduler and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if serr := s.scheduler.Stop(ctx); serr != nil && err == nil {
		err = serr
	}
	if s.stopBroker != nil {
		s.stopBroker()
		select {
		case <-s.brokerDone:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	return err
}
