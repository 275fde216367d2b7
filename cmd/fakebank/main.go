package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/smart-atm/smart_atm/internal/config"
	"github.com/smart-atm/smart_atm/internal/fakebank"
	"github.com/smart-atm/smart_atm/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var store fakebank.Store
	if cfg.DataFile != "" {
		store = fakebank.NewFileStore(cfg.DataFile)
	} else {
		store = fakebank.NewMemoryStore()
	}

	otp := fakebank.OTPStore(fakebank.NewMemoryOTPStore())
	if cfg.RedisURL != "" {
		cache, err := fakebank.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		otp = fakebank.NewRedisOTPStore(cache)
	}

	core, err := fakebank.NewCore(store, logger)
	if err != nil {
		logger.Error("load accounts", "error", err)
		os.Exit(1)
	}

	srv := fakebank.NewServer(core, otp, cfg.OTPTTL, logger)

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("stub account service listening", "addr", cfg.Address())
		srvErrCh <- srv.Listen(cfg.Address())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
