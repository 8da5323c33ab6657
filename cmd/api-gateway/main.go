// Package main HTTP 入口：流式生成（SSE/WebSocket）、异步入队与查询
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"z-ebook-api/internal/config"
	einoobs "z-ebook-api/internal/observability/eino"
	"z-ebook-api/internal/wire"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/tracer"
)

// 构建时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), "api-gateway exited", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting api-gateway",
		"version", cfg.App.Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	tc := cfg.Observability.Tracing
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    tc.Endpoint,
		SampleRate:  tc.SampleRate,
		Enabled:     tc.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "tracer shutdown failed", "error", err.Error())
		}
	}()

	einoobs.Init()

	app, cleanup, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer cleanup()

	hc := cfg.Server.HTTP
	srv := &http.Server{
		Addr:              net.JoinHostPort(hc.Host, strconv.Itoa(hc.Port)),
		Handler:           app.Engine(),
		ReadTimeout:       hc.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		// 0 表示不限制，整本书的流式输出可能持续数分钟
		WriteTimeout: hc.WriteTimeout,
		IdleTimeout:  hc.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info(ctx, "server exited")
	return nil
}
