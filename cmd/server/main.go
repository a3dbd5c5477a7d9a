package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"authguard/internal/platform/config"
	"authguard/internal/platform/httpserver"
	"authguard/internal/platform/logger"
	"authguard/internal/platform/metrics"
)

// main wires dependencies, serves the HTTP router and drains background work on
// shutdown. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "authguard: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("authguard stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	a, err := build(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.close()

	router := newRouter(routerConfig{
		allowedOrigins: cfg.Server.AllowedOrigins,
		registry:       reg,
		checks:         a.checks,
		logger:         log,
	}, a.handler)
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.recorder.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if a.janitor != nil {
		a.janitor.Start()
	}

	g.Go(func() error {
		log.InfoContext(gctx, "starting authguard", "addr", cfg.Server.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if a.janitor != nil {
			a.janitor.Stop(shutdownCtx)
		}
		if cerr := a.recorder.Close(shutdownCtx); cerr != nil {
			log.Warn("audit drain incomplete", "error", cerr)
		}
		return err
	})

	return g.Wait()
}
