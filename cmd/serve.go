package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"menu-planner/internal/config"
	"menu-planner/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API as a local HTTP server",
		Long: `Run the API as a local HTTP server.

Variables from the env file are loaded without overriding the environment.
Prometheus metrics are exposed on /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(os.Getenv)
			if err != nil {
				return err
			}
			if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
				cfg.Addr = flagAddr
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	cmd.Flags().String("addr", "", "listen address (overrides ADDR)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a, err := buildApp(ctx, cfg, m)
	if err != nil {
		return err
	}

	healthCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := a.recommender.Health(healthCtx); err != nil {
		slog.Warn("recommender is not reachable", "url", cfg.RecommenderURL, "err", err)
	}
	cancel()

	router := chi.NewRouter()
	router.Handle("/metrics", m.Handler())
	router.Mount("/", a.handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("menu-planner listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
