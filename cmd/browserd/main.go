package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/browserd/api"
	"github.com/use-agent/browserd/config"
	"github.com/use-agent/browserd/content"
	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/pool"
	"github.com/use-agent/browserd/tools"
	"github.com/use-agent/browserd/webhook"
)

const version = "0.1.0"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	// stdout carries the MCP stdio stream, so all logs go to stderr.
	initLogger(cfg.Log)
	slog.Info("browserd starting",
		"engine", cfg.Pool.EngineKind,
		"headless", cfg.Pool.Headless,
		"maxSessions", cfg.Pool.MaxSessions,
	)

	// ── 3. Construct and initialise the session pool ────────────────
	driver := engine.NewPlaywrightDriver(cfg.Engine.InstallOnStart)
	manager := pool.NewManager(cfg.Pool, driver)
	if notifier := webhook.NewNotifier(cfg.Webhook); notifier != nil {
		manager.OnEvent(notifier.HandleEvent)
	}

	if err := manager.Initialize(context.Background()); err != nil {
		slog.Error("failed to initialise session pool", "error", err)
		os.Exit(1)
	}

	// ── 4. Build the MCP server from the tool registry ──────────────
	s := server.NewMCPServer("browserd", version, server.WithToolCapabilities(false))
	tools.Register(s, &tools.Deps{Pool: manager, Content: content.NewPipeline()})

	// ── 5. Optional diagnostic HTTP API ──────────────────────────────
	var httpSrv *http.Server
	if cfg.Server.Addr != "" {
		httpSrv = &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: api.NewRouter(manager, cfg, time.Now()),
		}
		go func() {
			slog.Info("diagnostic HTTP API listening", "addr", cfg.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server error", "error", err)
			}
		}()
	}

	// ── 6. Serve MCP over stdio until stdin closes or a signal lands ─
	done := make(chan error, 1)
	go func() { done <- server.ServeStdio(s) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		if err != nil {
			slog.Error("MCP server error", "error", err)
		}
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	// ── 7. Graceful shutdown: HTTP first, then the pool ─────────────
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}
		cancel()
	}

	poolCtx, cancel := context.WithTimeout(context.Background(), cfg.Pool.ShutdownTimeout)
	defer cancel()
	outcomes := manager.Shutdown(poolCtx)

	failures := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
		}
	}
	if failures > 0 {
		slog.Warn("pool shutdown finished with cleanup failures",
			"sessions", len(outcomes),
			"failures", failures,
		)
	}
	slog.Info("browserd stopped")
}

// initLogger configures slog based on the LogConfig. Output goes to stderr so
// the stdio protocol stream stays clean.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
