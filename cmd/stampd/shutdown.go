package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wudi/pdfstamp/observability"
)

// runWithGracefulShutdown serves until SIGINT or SIGTERM, then drains
// in-flight requests for at most grace before running cleanup.
func runWithGracefulShutdown(srv *http.Server, logger observability.Logger, cleanup func(), grace time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", observability.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-serverErr:
		if cleanup != nil {
			cleanup()
		}
		return err
	case sig := <-signals:
		logger.Info("shutting down", observability.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", observability.Error("error", err))
	}
	if cleanup != nil {
		cleanup()
	}
	if err := <-serverErr; err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
