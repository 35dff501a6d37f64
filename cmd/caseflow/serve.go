package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/caseflow-io/caseflow/pkg/adapters/httpapi"
	"github.com/caseflow-io/caseflow/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes the engine as a JSON API: POST /conversations/{id}/messages runs one turn, GET /conversations/{id} inspects state, /metrics serves prometheus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		engine, cfg, err := buildEngine(cmd, metrics)
		if err != nil {
			return err
		}

		logger := buildLogger(cmd)
		handler := httpapi.NewHandler(engine, registry, httpapi.WithLogger(logger))

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Server.Listen
		}
		srv := &http.Server{
			Addr:    listen,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("caseflow server listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			// In-flight turns get a deadline: a turn persists its state
			// before replying, so a clean drain loses nothing.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to stop server: %w", err)
				}
			}
			logger.Info("caseflow server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (overrides server.listen from config)")
}
