// Command bioflow is the BioFlow health planning client.
//
// It turns a lab report into a consultation, generates weekly meal and workout
// plans through the plan service and keeps the daily trackers. `bioflow serve`
// exposes the same application over a local HTTP API for the dashboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Bootstrap logging before config so .env loading is visible with BIOFLOW_LOG_LEVEL=debug.
	initializeLogger(parseLogLevel(os.Getenv("BIOFLOW_LOG_LEVEL")))

	config := loadEnvironmentConfig()
	root := newRootCmd(&config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Debug("bioflow command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
