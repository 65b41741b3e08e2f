package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale-labs/bouncer/internal/clock"
	"github.com/rescale-labs/bouncer/internal/config"
	"github.com/rescale-labs/bouncer/internal/dispatcher"
	"github.com/rescale-labs/bouncer/internal/idgen"
	"github.com/rescale-labs/bouncer/internal/logging"
	"github.com/rescale-labs/bouncer/internal/primitives"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Bouncer HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("loglevel") {
				level, err := logging.ParseLevel(logLevel)
				if err != nil {
					return fmt.Errorf("invalid --loglevel: %w", err)
				}
				cfg.LogLevel = level
			}
			logging.SetGlobalLevel(cfg.LogLevel)

			log := logging.New()
			registry := primitives.NewRegistry(clock.System{}, idgen.UUIDGenerator{})
			disp := dispatcher.New(registry, log)

			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Port),
				Handler: disp.Handler(),
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info().Int("port", cfg.Port).Msg("bouncer listening")
				disp.MarkReady()
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- err
					return
				}
				serverErr <- nil
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			case err := <-serverErr:
				if err != nil {
					return err
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown failed")
				return err
			}
			log.Info().Msg("bouncer stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "TCP port to listen on (overrides BOUNCER_PORT)")
	cmd.Flags().StringVar(&logLevel, "loglevel", "info", "log verbosity: debug, info, warn, error (overrides BOUNCER_LOGLEVEL)")

	return cmd
}
