package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caltrack/internal/amqp"
	"caltrack/internal/auth"
	"caltrack/internal/cli"
	apphttp "caltrack/internal/http"
	applog "caltrack/internal/log"
	"caltrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentServer)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// The queue is optional: without it meals stay local-only.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			repo.Close()
			os.Exit(1)
		}
		publisher = client
		logger.Info("Export event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Export event publishing disabled - no AMQP_URL provided")
	}

	meals := services.NewMealService(repo, publisher)
	defer func() {
		if err := meals.Close(); err != nil {
			logger.Error("Close error", "error", err)
		}
	}()

	opts := apphttp.Options{}
	if cfg.AuthEnabled() {
		provider, err := auth.NewProviderFromEnv(
			cfg.GoogleOAuthClientJSON,
			cfg.GoogleOAuthClientFile,
			cfg.BaseURL+"/auth/callback",
		)
		if err != nil {
			logger.Error("Failed to initialize OAuth provider", "error", err)
			os.Exit(1)
		}
		opts.Provider = provider
		opts.Sessions = auth.NewSessionStore(cfg.SessionTTL)
		logger.Info("Google login enabled", "session_ttl", cfg.SessionTTL)
	} else {
		logger.Info("Google login disabled - no OAuth client credentials provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, meals, opts)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting caltrack server",
		"port", cfg.Port,
		"auth", cfg.AuthEnabled(),
		"export", cfg.ExportEnabled())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
