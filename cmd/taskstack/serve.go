package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/taskstack/internal/audit"
	"github.com/fentz26/taskstack/internal/controlplane"
	"github.com/fentz26/taskstack/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task stack backend",
		Long:  `Serves the REST API and the /events stream over a SQLite database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runServe(ctx)
		},
	}

	cmd.Flags().String("listen", "", "listen address")
	cmd.Flags().String("db", "", "path to the SQLite database")
	cmd.Flags().Bool("seed", true, "load the demo tasks into an empty database")
	mustBind(c.v, "server.listen", cmd, "listen")
	mustBind(c.v, "server.db", cmd, "db")
	mustBind(c.v, "server.seed", cmd, "seed")
	return cmd
}

func (c *cli) runServe(ctx context.Context) error {
	st, err := store.New(c.cfg.Server.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	metrics := controlplane.NewMetrics()
	hub := controlplane.NewHub(controlplane.DefaultSubscriberBuffer, metrics)
	logger := log.Logger.With().Str("component", "controlplane").Logger()
	service := controlplane.NewService(st, audit.NewRecorder(st), hub, metrics, logger)

	if c.cfg.Server.Seed {
		if err := service.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed tasks: %w", err)
		}
	}

	server := controlplane.NewServer(service, metrics, c.cfg.Server.Listen, logger)
	l, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(l)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
