package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streethustle/internal/catalog"
	"streethustle/internal/config"
	"streethustle/internal/save"
	"streethustle/internal/server"
	"streethustle/internal/session"
)

func main() {
	cfgPath := flag.String("config", "hustle.yml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := cfg.Log.Logger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

type app struct {
	store   save.Store
	session *session.Session
	handler http.Handler
}

// newApp opens the store, starts the session and builds the HTTP handler.
// The caller drives the session with Run and tears it down with close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cat := catalog.LoadOrFallback(cfg.Catalog.Path, logger)

	store, err := save.Open(ctx, cfg.Store.Driver, cfg.Store.StoreLocation())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sc := cfg.Session()
	adapter := save.NewAdapter(store, cat, save.AdapterOptions{
		Key:           cfg.Store.Key,
		StartingMoney: sc.Rules.StartingMoney,
		Logger:        logger,
	})
	s := session.New(cat, adapter, session.Options{Config: sc, Logger: logger})
	if err := s.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	handler, err := server.NewHandler(server.Options{Game: s, Logger: logger})
	if err != nil {
		_ = s.Stop(ctx)
		_ = store.Close()
		return nil, err
	}
	return &app{store: store, session: s, handler: handler}, nil
}

func (a *app) close(ctx context.Context) error {
	err := a.session.Stop(ctx)
	return errors.Join(err, a.store.Close())
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.session.Run(ctx) }()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	case err = <-loopDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if cerr := a.close(shutdownCtx); cerr != nil {
		logger.Warn("final save failed", "err", cerr)
	}
	logger.Info("shutdown complete")
	return err
}
