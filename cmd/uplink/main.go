package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rgordeev/uplink/internal/config"
	"github.com/rgordeev/uplink/internal/proxy"
	"github.com/rgordeev/uplink/internal/supervisor"
	"github.com/rgordeev/uplink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/uplink.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger; replaced once the configured level is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Log.Level != "info" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(cfg.Log.Level),
		}))
		slog.SetDefault(logger)
	}

	logger.Info("starting uplink",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	proxyDesc, err := proxy.Parse(cfg.Proxy.URL)
	if err != nil {
		logger.Error("invalid proxy URL", "error", err)
		os.Exit(1)
	}
	if proxyDesc != nil {
		logger.Info("forward proxy configured", "proxy", proxyDesc.String())
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sup := supervisor.New(supervisor.Config{
		URL:               cfg.Gateway.URL,
		Origin:            cfg.Gateway.Origin,
		UserAgent:         cfg.Node.UserAgent,
		UserID:            cfg.Node.UserID,
		Version:           cfg.Node.Version,
		Proxy:             proxyDesc,
		ConnectTimeout:    cfg.Timing.ConnectTimeout,
		WriteTimeout:      cfg.Timing.WriteTimeout,
		HeartbeatInterval: cfg.Timing.HeartbeatInterval,
		StaleAfter:        cfg.Timing.StaleAfter,
		RetryDelay:        cfg.Timing.RetryDelay,
	}, logger)

	// Blocks until the context is cancelled.
	sup.Run(ctx)

	logger.Info("uplink stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
