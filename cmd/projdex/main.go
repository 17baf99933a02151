package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dshills/projdex/internal/config"
	"github.com/dshills/projdex/internal/history"
	"github.com/dshills/projdex/internal/logging"
	"github.com/dshills/projdex/internal/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		showVersion = pflag.Bool("version", false, "print version and exit")
		configPath  = pflag.String("config", "", "path to config file (default: XDG config dir)")
		logLevel    = pflag.String("log-level", "", "override log level (debug, info, warn, error)")
		verbose     = pflag.BoolP("verbose", "v", false, "also log to stderr")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Printf("projdex MCP server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", history.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", history.DriverName)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "projdex: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, closeLog, err := logging.New(logging.Config{
		FilePath:   cfg.LogPath(),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Level:      cfg.Log.Level,
		Console:    *verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "projdex: logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("build_mode", history.BuildMode),
		zap.String("data_dir", cfg.DataDir))

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		logger.Error("server init failed", zap.Error(err))
		closeLog()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		server.Close()
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			closeLog()
			os.Exit(1)
		}
	}

	logger.Info("stopped")
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
