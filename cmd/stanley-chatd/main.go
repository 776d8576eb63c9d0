// Command stanley-chatd serves the Stanley's Cafeteria assistant over
// HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/stanley-cafeteria/stanley-chat/chat"
	"github.com/stanley-cafeteria/stanley-chat/gemini"
	"github.com/stanley-cafeteria/stanley-chat/internal/dotenv"
	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
	"github.com/stanley-cafeteria/stanley-chat/server"
)

type appConfig struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`

	Addr            string        `env:"STANLEY_ADDR" envDefault:":8080"`
	SessionCapacity int           `env:"STANLEY_SESSION_CAPACITY" envDefault:"32"`
	MaxToolRounds   int           `env:"STANLEY_MAX_TOOL_ROUNDS" envDefault:"1"`
	CORSOrigins     []string      `env:"STANLEY_CORS_ORIGINS" envSeparator:","`
	LogLevel        slog.Level    `env:"STANLEY_LOG_LEVEL" envDefault:"info"`
	ShutdownGrace   time.Duration `env:"STANLEY_SHUTDOWN_GRACE" envDefault:"10s"`
}

func run(ctx context.Context, stderr io.Writer) error {
	if err := dotenv.Load(); err != nil {
		return err
	}

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logger := slog.New(logging.NewHandler(stderr, &logging.Options{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	provider, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.GeminiAPIKey,
		SessionCapacity: cfg.SessionCapacity,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	orchestrator := chat.NewOrchestrator(provider,
		chat.WithMaxToolRounds(cfg.MaxToolRounds),
		chat.WithLogger(logger),
	)

	origins := make(map[string]struct{}, len(cfg.CORSOrigins))
	for _, origin := range cfg.CORSOrigins {
		origins[origin] = struct{}{}
	}

	srv := server.New(server.Config{CORSAllowedOrigins: origins}, orchestrator, provider, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting stanley-chatd", "addr", cfg.Addr)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("stanley-chatd stopped")
	return nil
}

func main() {
	if err := run(context.Background(), os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "stanley-chatd: %v\n", err)
		os.Exit(1)
	}
}
