package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fincontrol/internal/auth"
	"fincontrol/internal/backend"
	"fincontrol/internal/cli"
	apphttp "fincontrol/internal/http"
	"fincontrol/internal/log"
	"fincontrol/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := cli.SignalContext(logger)

	result, err := backend.NewFactory(cfg, logger).Create(ctx)
	if err != nil {
		logger.Error("backend initialization failed",
			log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Cleanup()

	ledger := services.NewLedger(result.Store, result.Notifier, logger)

	opts := apphttp.Options{
		Addr:     ":" + cfg.Port,
		Ledger:   ledger,
		Notifier: result.Notifier,
		Logger:   logger,
	}
	if cfg.AuthEnabled() {
		tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
		opts.Tokens = tokens
		opts.AuthSvc = auth.NewService(result.Users, tokens, logger)
	}

	srv, err := apphttp.NewServer(opts)
	if err != nil {
		logger.Error("server initialization failed", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"auth_enabled", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
