package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/fentz26/taskstack/internal/api"
	"github.com/fentz26/taskstack/internal/logging"
	"github.com/fentz26/taskstack/internal/syncclient"
	"github.com/fentz26/taskstack/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	healthTimeout  = 500 * time.Millisecond
	startupTimeout = 5 * time.Second
	startupPoll    = 250 * time.Millisecond
)

func (c *cli) tuiCmd() *cobra.Command {
	var noStart bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive stack viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context(), !noStart)
		},
	}
	cmd.Flags().BoolVar(&noStart, "no-start", false, "do not start a local backend when none is reachable")
	return cmd
}

func (c *cli) runTUI(ctx context.Context, autoStart bool) error {
	f, err := logging.InitFile(c.cfg.Log.Debug, c.cfg.Log.File)
	if err != nil {
		return err
	}
	defer f.Close()

	client := c.client()
	if !isBackendRunning(ctx, client) {
		if !autoStart {
			return fmt.Errorf("no backend reachable at %s", client.BaseURL())
		}
		fmt.Println("Backend not running. Starting background service...")
		args := []string{"serve"}
		if c.cfgFile != "" {
			args = append(args, "--config", c.cfgFile)
		}
		if err := startBackend(ctx, client, args); err != nil {
			return fmt.Errorf("failed to start backend: %w", err)
		}
	}

	policy, err := c.cfg.ReconnectPolicy()
	if err != nil {
		return err
	}

	notifier := tui.NewNotifier()
	sc := syncclient.New(client,
		syncclient.WithNotifier(notifier),
		syncclient.WithLogger(log.Logger),
		syncclient.WithReconnect(policy),
	)
	if err := tui.Run(ctx, sc, client, notifier); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isBackendRunning(ctx context.Context, client *api.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	ok, err := client.Health(ctx)
	return err == nil && ok
}

// startBackend runs this executable with args as a detached process and
// waits for it to answer health checks.
func startBackend(ctx context.Context, client *api.Client, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, args...)
	configureDetached(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}
	log.Info().Int("pid", cmd.Process.Pid).Msg("started background backend")
	if err := cmd.Process.Release(); err != nil {
		log.Warn().Err(err).Msg("release backend process")
	}

	fmt.Print("   Waiting for backend...")
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		if isBackendRunning(ctx, client) {
			fmt.Println(" Done.")
			return nil
		}
		select {
		case <-ctx.Done():
			fmt.Println()
			return ctx.Err()
		case <-time.After(startupPoll):
		}
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("backend started but API not reachable at %s", client.BaseURL())
}
