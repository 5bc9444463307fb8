package main

import (
	"flag"
	"fmt"
	"os"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.InitWithOptions(logger.Options{
		Path:    cfg.Logging.Path,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	}); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// Setup and start server
	srv, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}

	if err := StartServer(srv); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
