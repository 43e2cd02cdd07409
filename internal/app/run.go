package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"urlconn/internal/common/logging"
	"urlconn/internal/config"
)

// Run is the main entry point for the application
func Run(args []string) error {
	// Load environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logging.MustSync()

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.LogBreakerStats()

	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("Command failed", err)
		return err
	}
	return nil
}
