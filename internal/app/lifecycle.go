package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WaitForShutdown blocks until SIGINT or SIGTERM arrives or parent is
// cancelled, then shuts the application down within timeout.
func WaitForShutdown(parent context.Context, appCtx *AppContext, timeout time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		appCtx.Logger.Info("Shutdown signal received",
			slog.String("signal", sig.String()),
		)
	case <-parent.Done():
		appCtx.Logger.Info("Parent context cancelled, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return appCtx.Shutdown(shutdownCtx)
}
