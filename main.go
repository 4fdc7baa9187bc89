package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/safemed/safemed-api/config"
	"github.com/safemed/safemed-api/data"
	"github.com/safemed/safemed-api/drugbase"
	"github.com/safemed/safemed-api/logging"
	"github.com/safemed/safemed-api/scheduler"
	"github.com/safemed/safemed-api/server"
	"github.com/safemed/safemed-api/validation"
)

func init() {
	// Read the env variables from the working directory
	if err := godotenv.Load(); err != nil {
		// If that failed, run relative to the executable so the data and
		// log directories still resolve when launched from elsewhere
		ex, err := os.Executable()
		if err != nil {
			slog.Error("Failed to get executable path", "error", err)
			os.Exit(1)
		}
		if err := os.Chdir(filepath.Dir(ex)); err != nil {
			slog.Error("Failed to change directory", "error", err)
			os.Exit(1)
		}
		// A missing .env is fine, every variable has a default
		_ = godotenv.Load()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(cfg.LogDir, cfg.LogRetentionWeeks, cfg.MaxLogFileSize, logging.ParseLevel(cfg.LogLevel))

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	loader := drugbase.NewLoader(cfg.DataDir)
	validator := validation.NewDataValidator()

	sched := scheduler.NewSchedulerWithSchedule(dataContainer, loader, validator, cfg.ReloadSchedule)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, dataContainer)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until interrupted, then drain
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
	sched.Stop()
}
