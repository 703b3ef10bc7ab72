// Package main runs the Appraisal Engine HTTP API.
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

	"github.com/spf13/cobra"

	"github.com/spherical-ai/appraisal/internal/app"
	"github.com/spherical-ai/appraisal/internal/config"
	"github.com/spherical-ai/appraisal/internal/observability"
)

func main() {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "appraisal-api",
		Short:         "Serve document uploads and chat messages over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				cfgPath = os.Getenv("CONFIG_PATH")
			}
			return serve(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default $CONFIG_PATH)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "appraisal-api: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer a.Close()

	go func() {
		if err := a.WatchModelUpdates(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Model update subscription ended")
		}
	}()

	srv := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: NewRouter(logger, AppConfig{
			ServiceName:    cfg.Observability.ServiceName,
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		}, a.Coordinator, a.Ready),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info().
		Str("addr", srv.Addr).
		Str("llm_model", cfg.LLM.Model).
		Str("snapshot", cfg.Snapshot.Driver).
		Bool("model_loaded", a.Ready()).
		Msg("Appraisal API listening")

	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.ListenAndServe() }()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	return shutdown(srv, cfg.Server.GracefulShutdown, logger)
}

// shutdown drains in-flight requests for up to grace, then drops connections.
func shutdown(srv *http.Server, grace time.Duration, logger *observability.Logger) error {
	logger.Info().Dur("grace", grace).Msg("Draining HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Drain incomplete, closing connections")
		return srv.Close()
	}
	logger.Info().Msg("HTTP server stopped")
	return nil
}
