// Package main is the entry point for the todo API server.
//
// MAIN PACKAGE IN GO:
// main() should stay minimal. Its job is to:
//  1. Read configuration (env vars, optionally seeded from a .env file)
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in the internal/ packages.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/todo-server/internal/config"
	"github.com/sakif/todo-server/internal/server"
)

func main() {
	// === 1. LOAD .env (OPTIONAL) ===
	// Real environment variables win over the file: godotenv.Load never
	// overwrites a variable that is already set.
	loadLocalEnv()

	// === 2. READ CONFIGURATION ===
	// HASH_WORK_FACTOR and the JWT_* keys are required. A missing or invalid
	// value stops the process here, before anything listens.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	// === 4. DATABASE DIRECTORY ===
	// SQLite creates the file but not its parent directory.
	if cfg.DBDriver == config.DriverSQLite && cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no .env file found, using process environment")
			return
		}
		slog.Warn("could not load .env file", slog.String("error", err.Error()))
	}
}
