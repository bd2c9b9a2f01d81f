package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/BioFlow/internal/flow"
	"github.com/BTreeMap/BioFlow/internal/genai"
	"github.com/BTreeMap/BioFlow/internal/lockfile"
	"github.com/BTreeMap/BioFlow/internal/planclient"
	"github.com/BTreeMap/BioFlow/internal/shell"
	"github.com/BTreeMap/BioFlow/internal/store"
)

// runtime is one booted App together with the resources it owns.
type runtime struct {
	cfg      Config
	lock     *lockfile.Lock
	store    store.Store
	app      *flow.App
	notifier *shell.Notifier
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(cfg Config) []store.Option {
	opts := []store.Option{store.WithDSN(cfg.resolveDSN())}
	if cfg.Profile != "" {
		opts = append(opts, store.WithNamespace(cfg.Profile))
	}
	return opts
}

// buildPlanClientOptions constructs plan service client options
func buildPlanClientOptions(cfg Config) []planclient.Option {
	var opts []planclient.Option
	if cfg.ServiceURL != "" {
		opts = append(opts, planclient.WithBaseURL(cfg.ServiceURL))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(cfg Config) []genai.Option {
	var opts []genai.Option
	if cfg.OpenAIKey != "" {
		opts = append(opts, genai.WithAPIKey(cfg.OpenAIKey))
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(cfg.OpenAIModel))
	}
	return opts
}

// ensureDatabaseDir creates the parent directory of a file-based DSN.
func ensureDatabaseDir(dsn string) error {
	if store.DetectDSNType(dsn) != store.DSNTypeSQLite {
		return nil
	}
	dir := filepath.Dir(dsn)
	slog.Debug("Creating directory for file-based database", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// openRuntime locks the state directory, opens the store and boots the App.
// Toasts and the loading spinner go to errOut.
func openRuntime(ctx context.Context, cfg Config, errOut io.Writer) (*runtime, error) {
	lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Profile)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, lock: lock}

	dsn := cfg.resolveDSN()
	if err := ensureDatabaseDir(dsn); err != nil {
		rt.Close()
		return nil, err
	}
	st, err := store.New(buildStoreOptions(cfg)...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	rt.store = st

	plans, err := planclient.NewClient(buildPlanClientOptions(cfg)...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to configure plan service client: %w", err)
	}

	rt.notifier = shell.NewNotifier(errOut)
	appOpts := []flow.AppOption{
		flow.WithNotifier(rt.notifier),
		flow.WithLoadingIndicator(shell.NewSpinnerIndicator(errOut)),
	}
	if cfg.OpenAIKey != "" {
		assistant, err := genai.NewClient(buildGenAIOptions(cfg)...)
		if err != nil {
			slog.Warn("GenAI assistant disabled", "error", err)
		} else {
			appOpts = append(appOpts, flow.WithAssistant(assistant))
		}
	}

	rt.app = flow.NewApp(flow.NewStateManager(st), plans, appOpts...)
	if err := rt.app.Boot(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	slog.Debug("Runtime opened", "state_dir", cfg.StateDir, "profile", cfg.Profile, "store", store.DetectDSNType(dsn))
	return rt, nil
}

// Close stops timers, closes the store and releases the lock.
func (rt *runtime) Close() {
	if rt.app != nil {
		rt.app.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("Runtime failed to close store", "error", err)
		}
	}
	if rt.lock != nil {
		rt.lock.Release()
	}
}
