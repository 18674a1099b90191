// Package main provides the long-running service:
// - Poll cycles on a cron schedule, plus one at startup
// - HTTP surface: health, metrics, status, manual trigger, live stream
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"announcement-radar/internal/app"
	"announcement-radar/internal/config"
	"announcement-radar/internal/logger"
)

// Server holds the assembled service and its schedulers.
type Server struct {
	cfg  *config.Config
	app  *app.App
	log  logger.Logger
	cron *cron.Cron
	http *http.Server

	wg sync.WaitGroup
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml if present)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Logger.Level, Development: cfg.Logger.Development})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()

	server := &Server{
		cfg: cfg,
		app: a,
		log: log,
		http: a.Router(log).NewHTTPServer(
			cfg.Server.Address,
			cfg.Server.ReadTimeout,
			cfg.Server.WriteTimeout,
		),
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating graceful shutdown", logger.String("signal", sig.String()))
		cancel()

		sig = <-sigCh
		log.Warn("received second signal, forcing immediate shutdown", logger.String("signal", sig.String()))
		os.Exit(1)
	}()

	return server.Run(ctx)
}

// Run starts the scheduler and HTTP server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting server",
		logger.String("address", s.cfg.Server.Address),
		logger.String("schedule", s.cfg.Poll.Schedule),
	)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Poll.Schedule, func() { s.runCycle(ctx, "cron") }); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", s.cfg.Poll.Schedule, err)
	}
	s.cron.Start()

	if s.cfg.Poll.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runCycle(ctx, "startup")
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.shutdown()
	return runErr
}

// runCycle runs one poll cycle unless shutdown has begun. A started cycle is
// not cancelled by shutdown. Failures are logged; the scheduler keeps going.
func (s *Server) runCycle(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	log := s.log.With(logger.String("trigger", trigger))
	if _, err := s.app.Orchestrator.RunCycle(context.WithoutCancel(ctx)); err != nil {
		log.Error("scheduled poll cycle failed", logger.Error(err))
	}
}

func (s *Server) shutdown() {
	timeout := s.cfg.Server.ShutdownTimeout
	s.log.Info("shutting down", logger.Duration("timeout", timeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown incomplete", logger.Error(err))
	}

	// Wait for running cycles to finish their batch.
	cronDone := s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	for _, ch := range []<-chan struct{}{cronDone, done} {
		select {
		case <-ch:
		case <-shutdownCtx.Done():
			s.log.Warn("graceful shutdown timed out")
			return
		}
	}
	s.log.Info("shutdown complete")
}
