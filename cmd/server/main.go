package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomrelay/internal/api"
	"github.com/Tyrowin/roomrelay/internal/auth"
	"github.com/Tyrowin/roomrelay/internal/config"
	"github.com/Tyrowin/roomrelay/internal/files"
	"github.com/Tyrowin/roomrelay/internal/presence"
	"github.com/Tyrowin/roomrelay/internal/server"
	"github.com/Tyrowin/roomrelay/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomrelay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanup runs before the process exits.
func run() (int, error) {
	envFile := pflag.String("env-file", "", "path to a .env file (defaults to ./.env when present)")
	logLevel := pflag.String("log-level", "", "overrides LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return exitConfig, err
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logs.GetLoggerFromString(cfg.LogLevel)
	logger.Info("Starting roomrelay...", "port", cfg.Port, "badger_path", cfg.BadgerPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.BadgerPath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = st.Close()
	}()

	uploads, err := files.NewService(cfg.UploadDir, cfg.MaxUploadSize, st, logger)
	if err != nil {
		return exitRuntime, err
	}

	var mirror presence.Mirror = presence.NopMirror{}
	if cfg.RedisURL != "" {
		redisMirror, err := presence.NewRedisMirrorFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return exitRuntime, fmt.Errorf("connect presence mirror: %w", err)
		}
		defer func() { _ = redisMirror.Close() }()
		mirror = redisMirror
		logger.Info("Mirroring presence to Redis")
	}

	tokens := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)

	sup := server.NewSupervisor(server.Config{
		AllowedOrigins:    cfg.Origins(),
		MaxMessageSize:    cfg.MaxMessageSize,
		RateLimit:         server.RateLimitConfig{Burst: cfg.RateLimitBurst, RefillInterval: cfg.RateLimitRefill()},
		HandshakeTimeout:  cfg.HandshakeTimeout,
		PersistTimeout:    cfg.PersistTimeout,
		SideEffectTimeout: cfg.SideEffectTimeout,
		TypingThrottle:    cfg.TypingThrottle,
		SendBufferSize:    cfg.SendBufferSize,
		FileURLPrefix:     cfg.FileURLPrefix,
		MaxContentLength:  cfg.MaxContentLength,
	}, server.Dependencies{
		Verifier: tokens,
		Rooms:    st,
		Messages: st,
		Seen:     st,
		Mirror:   mirror,
	}, logger)
	go sup.Run()

	restAPI := api.New(api.Config{
		HistoryLimit:  cfg.HistoryLimit,
		FileURLPrefix: cfg.FileURLPrefix,
	}, api.Dependencies{Store: st, Tokens: tokens, Files: uploads}, logger)

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(sup, restAPI))

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
		logger.Error("HTTP server failed", "error", runErr)
	}

	// Stop accepting connections first, then close the sessions that remain.
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("HTTP server did not shut down cleanly", "error", err)
	}
	if err := sup.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("Supervisor did not shut down cleanly", "error", err)
	}

	logger.Info("roomrelay stopped")
	return code, runErr
}
