// Package server assembles the HTTP application from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/db"
	"github.com/devmarvs/bear/health"
	"github.com/devmarvs/bear/httpclient"
	"github.com/devmarvs/bear/metrics"
	"github.com/devmarvs/bear/middleware"
	"github.com/devmarvs/bear/migrate"
	"github.com/devmarvs/bear/oidc"
	"github.com/devmarvs/bear/otel"
	"github.com/devmarvs/bear/pprof"
	"github.com/devmarvs/bear/session"
	"github.com/devmarvs/bear/tasks"
)

// Server is a wired application with its background jobs.
type Server struct {
	App      *bear.App
	Main     *db.Main
	Sessions *session.SQLStore
	Metrics  *metrics.Registry

	cfg    config.Config
	clock  clock.Clock
	logger *slog.Logger
	tasks  *tasks.Runner
}

type options struct {
	clock     clock.Clock
	exchanger oidc.Exchanger
}

// Option customizes New.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithExchanger replaces OIDC discovery with exchanger.
func WithExchanger(exchanger oidc.Exchanger) Option {
	return func(o *options) {
		o.exchanger = exchanger
	}
}

// New opens the database, applies migrations and registers every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}

	main, err := db.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Apply(ctx, main)
	if err != nil {
		_ = main.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		logger.Info("migrations applied", slog.Int("count", applied))
	}

	sessions, err := session.NewSQLStore(main, session.Lifetimes(cfg.Sessions.Lifetimes), session.WithQueryHook(db.SlogHook(logger)))
	if err != nil {
		_ = main.Close()
		return nil, err
	}

	s := &Server{
		App:      bear.New(bear.WithConfig(cfg), bear.WithLogger(logger)),
		Main:     main,
		Sessions: sessions,
		Metrics:  metrics.New(),
		cfg:      cfg,
		clock:    o.clock,
		logger:   logger,
		tasks:    tasks.New(tasks.Options{Logger: logger}),
	}

	s.App.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recover(),
		middleware.Trace(otel.NewTracer("bear")),
		middleware.Metrics(s.Metrics),
	)

	uow := middleware.UnitOfWork(main,
		middleware.WithTxnMetrics(s.Metrics),
		middleware.WithRequestTxnRecorder(otel.TxnEvents),
	)
	auth := middleware.Authenticate(main, sessions, s.clock,
		middleware.AuthRequired(true),
		middleware.AuthCredentials(bear.ReadCredentials(cfg.Sessions.CookieName)),
		middleware.AuthMetrics(s.Metrics),
	)

	s.login(ctx, o.exchanger).Mount(s.App, uow, auth)
	health.New(health.WithDatabase(main)).Mount(s.App)
	if cfg.Server.Pprof {
		pprof.Mount(s.App, auth)
	}
	s.App.Mount("GET /metrics", s.Metrics.Handler())
	return s, nil
}

func (s *Server) login(ctx context.Context, exchanger oidc.Exchanger) *oidc.Handlers {
	if exchanger != nil {
		return oidc.New(exchanger, s.Sessions, s.clock, s.cfg)
	}
	if err := s.cfg.OIDC.Enabled(); err != nil {
		s.logger.Warn("oidc login disabled", slog.String("reason", err.Error()))
		return oidc.New(nil, s.Sessions, s.clock, s.cfg, oidc.WithDisabled(err))
	}

	retry := httpclient.DefaultRetryOptions()
	retry.Logger = s.logger
	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	provider, err := oidc.NewProvider(discoverCtx, s.cfg.OIDC, httpclient.New(httpclient.Options{Retry: retry}))
	if err != nil {
		s.logger.Error("oidc discovery failed", slog.String("error", err.Error()))
		return oidc.New(nil, s.Sessions, s.clock, s.cfg)
	}
	return oidc.New(provider, s.Sessions, s.clock, s.cfg)
}

// Run serves until ctx is canceled, sweeping expired sessions in the
// background, then closes the database.
func (s *Server) Run(ctx context.Context) error {
	s.tasks.Start(ctx)
	if interval := s.cfg.Sessions.SweepInterval; interval > 0 {
		go s.tasks.Every(ctx, interval, session.SweepJob(s.Main, s.Sessions, s.clock, s.logger))
	}

	err := s.App.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.App.ShutdownTimeout())
	defer cancel()
	return errors.Join(err, s.tasks.Shutdown(shutdownCtx), s.Main.Close())
}
