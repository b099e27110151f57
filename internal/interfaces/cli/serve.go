package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/infrastructure/collector"
	httpInterface "github.com/GanizaniSitara/controls-ux/internal/interfaces/http"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/handler"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/middleware"
	"github.com/GanizaniSitara/controls-ux/pkg/config"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listenPort string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if listenPort != "" {
				cfg.Server.Port = listenPort
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&listenPort, "port", "", "listen port (default $SERVER_PORT or 8080)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting controls-ux", "version", version)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := buildApp(ctx, cfg, log, modeServe)
	if err != nil {
		return err
	}

	var resources port.ResourceCollector
	if pc, err := collector.NewProcessCollector(); err != nil {
		log.Warn("Process statistics unavailable, heartbeat reports cache state only", "error", err.Error())
	} else {
		resources = pc
	}
	scheduler := aggregation.NewScheduler(a.cache, resources,
		cfg.Aggregator.RefreshInterval, cfg.Aggregator.HeartbeatInterval, log)

	go a.hub.Run()

	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
	}
	router := httpInterface.NewRouter(
		handler.NewCacheHandler(a.cache, log),
		handler.NewFitnessHandler(a.cache, a.fitness, log),
		handler.NewWebSocketHandler(a.hub, cfg.Security.AllowedOrigins, authConfig, log),
		a.metrics,
		a.registry,
		cfg.Security,
		log,
	)
	defer router.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Health endpoints answer while the initial refresh runs.
	if err := scheduler.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", err)
	}

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Shutdown signal received, starting graceful shutdown", "signal", sig.String())
	case <-ctx.Done():
		log.Info("Context cancelled, starting graceful shutdown")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}
	a.hub.Stop()
	a.close(shutdownCtx)

	log.Info("Server stopped gracefully")
	return runErr
}
