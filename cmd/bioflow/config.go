package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BTreeMap/BioFlow/internal/api"
	"github.com/BTreeMap/BioFlow/internal/planclient"
	"github.com/BTreeMap/BioFlow/internal/shell"
	"github.com/BTreeMap/BioFlow/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDirName is created under the home directory when no state dir is set.
	DefaultStateDirName = ".bioflow"
	// DefaultDBFileName is the SQLite database inside the state directory.
	DefaultDBFileName = "bioflow.db"
	// DefaultLogLevel applies when BIOFLOW_LOG_LEVEL is unset.
	DefaultLogLevel = "info"
)

// Config holds environment configuration; cobra flags override each field.
type Config struct {
	ServiceURL    string
	DBDSN         string
	StateDir      string
	Profile       string
	APIAddr       string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LogLevel      string
	Output        string
	NoColor       bool
}

// defaultStateDir returns ~/.bioflow, or a relative .bioflow when there is no home.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		slog.Debug("No home directory, using relative state dir", "error", err)
		return DefaultStateDirName
	}
	return filepath.Join(home, DefaultStateDirName)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		ServiceURL:    util.GetenvDefault("BIOFLOW_SERVICE_URL", planclient.DefaultBaseURL),
		DBDSN:         os.Getenv("BIOFLOW_DB_DSN"),
		StateDir:      os.Getenv("BIOFLOW_STATE_DIR"),
		Profile:       os.Getenv("BIOFLOW_PROFILE"),
		APIAddr:       util.GetenvDefault("BIOFLOW_API_ADDR", api.DefaultAddr),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		LogLevel:      util.GetenvDefault("BIOFLOW_LOG_LEVEL", DefaultLogLevel),
		Output:        shell.FormatHuman,
		NoColor:       util.ParseBoolEnv("BIOFLOW_NO_COLOR", false),
	}

	if config.StateDir == "" {
		config.StateDir = defaultStateDir()
		slog.Debug("No BIOFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// DATABASE_URL is the conventional name on hosted Postgres.
	if config.DBDSN == "" {
		config.DBDSN = os.Getenv("DATABASE_URL")
		if config.DBDSN != "" {
			slog.Debug("Using DATABASE_URL as BIOFLOW_DB_DSN", "dsn_set", true)
		}
	}

	slog.Debug("environment variables loaded",
		"BIOFLOW_SERVICE_URL", config.ServiceURL,
		"BIOFLOW_DB_DSN_SET", config.DBDSN != "",
		"BIOFLOW_STATE_DIR", config.StateDir,
		"BIOFLOW_PROFILE", config.Profile,
		"BIOFLOW_API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"BIOFLOW_LOG_LEVEL", config.LogLevel,
		"BIOFLOW_NO_COLOR", config.NoColor)

	return config
}

// resolveDSN returns the configured DSN or the SQLite file in the state dir.
// It is evaluated after flag parsing so --state-dir moves the default database.
func (c Config) resolveDSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return filepath.Join(c.StateDir, DefaultDBFileName)
}

// parseLogLevel maps a level name to slog; unknown names mean info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initializeLogger sets up structured logging on stderr, leaving stdout to command output.
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
