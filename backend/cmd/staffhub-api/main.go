package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/staffhub/staffhub/backend/internal/router"
	"github.com/staffhub/staffhub/backend/internal/setup"
	"github.com/staffhub/staffhub/shared/config"
	"github.com/staffhub/staffhub/shared/logger"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.Json)
	log := logger.With("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.SetupDependencies(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	server := &http.Server{
		Addr:              cfg.Public.Http.Addr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", server.Addr, "store", cfg.Public.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
