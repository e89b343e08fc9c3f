// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

// Command sceneforge-collabd serves real-time scene collaboration:
// websocket and stateless HTTP transports over a hub of CRDT-backed
// rooms, with SQLite snapshot persistence and optional webhooks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sceneforge-studio/sceneforge/hook"
	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/lib/version"
	"github.com/sceneforge-studio/sceneforge/room"
	"github.com/sceneforge-studio/sceneforge/server"
	"github.com/sceneforge-studio/sceneforge/store"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sceneforge-collabd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to the YAML configuration file")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return nil
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Full(), "listen", cfg.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	var roomStore room.Store
	if cfg.Database != "" {
		sqlStore, err := store.Open(store.Config{
			Path:   cfg.Database,
			Logger: logger.With("component", "store"),
			Clock:  clk,
		})
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		roomStore = sqlStore
	} else {
		logger.Warn("no database configured, scenes are memory-only")
	}

	events := room.Events(room.NopEvents{})
	if cfg.WebhookURL != "" {
		webhook, err := hook.NewWebhook(hook.Config{
			URL:     cfg.WebhookURL,
			Timeout: cfg.WebhookTimeout.Duration,
			Logger:  logger.With("component", "hook"),
		})
		if err != nil {
			return err
		}
		defer webhook.Close()
		events = webhook
	}

	hub := room.NewHub(room.Options{
		Clock:      clk,
		Logger:     logger.With("component", "room"),
		Store:      roomStore,
		Events:     events,
		ControlTTL: cfg.ControlTTL.Duration,
	})

	srv := server.New(server.Config{
		Hub:          hub,
		Logger:       logger.With("component", "server"),
		Clock:        clk,
		Store:        roomStore,
		PingInterval: cfg.PingInterval.Duration,
		PongTimeout:  cfg.PongTimeout.Duration,
	})
	if cfg.Disabled {
		srv.Gate().Disable()
		logger.Warn("collaboration gate starts disabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go maintain(ctx, cfg, clk, hub, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		// Better to exit nonzero than to silently lose buffered edits.
		return fmt.Errorf("final flush: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// maintain drives all periodic room work. Rooms own no timers; this
// loop is the only place expiry, sweeping, flushing, and eviction are
// triggered.
func maintain(ctx context.Context, cfg Config, clk clock.Clock, hub *room.Hub, logger *slog.Logger) {
	expiry := clk.NewTicker(time.Second)
	defer expiry.Stop()
	sweep := clk.NewTicker(cfg.SweepInterval.Duration)
	defer sweep.Stop()
	flush := clk.NewTicker(cfg.FlushInterval.Duration)
	defer flush.Stop()
	evict := clk.NewTicker(cfg.EvictInterval.Duration)
	defer evict.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			hub.ExpireControl()
		case <-sweep.C:
			if swept := hub.SweepPresence(cfg.PresenceTTL.Duration); swept > 0 {
				logger.Info("swept idle actors", "count", swept)
			}
		case <-flush.C:
			if err := hub.FlushDirty(ctx); err != nil {
				logger.Error("periodic flush", "error", err)
			}
		case <-evict.C:
			hub.EvictIdle(cfg.RoomIdleTTL.Duration)
		}
	}
}

func logLevel(name string) slog.Level {
	switch name {
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
