package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/logger"
)

const metricsShutdownTimeout = 5 * time.Second

// startMetrics starts the metrics endpoint for long-running commands.
// The address comes from the --metrics-addr flag, falling back to settings.
// The returned function stops the server; it is a no-op when metrics are off.
func startMetrics(cmd *cobra.Command) (func(), error) {
	noop := func() {}

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" && settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			addr = settings.MetricsAddr
		}
	}
	if addr == "" {
		return noop, nil
	}
	if newMetricsServer == nil {
		logger.Warn("metrics requested on %s but no metrics recorder is wired", addr)
		return noop, nil
	}

	server, err := newMetricsServer(addr)
	if err != nil {
		return noop, fmt.Errorf("starting metrics server: %w", err)
	}
	server.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "Metrics available at http://%s/metrics\n", server.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown: %v", err)
		}
	}, nil
}
