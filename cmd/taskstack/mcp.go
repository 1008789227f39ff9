package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/taskstack/internal/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task stack as MCP tools over stdio",
		Long:  `Runs a Model Context Protocol server on stdin/stdout exposing add_task, pop_task, get_tasks and peek_task. Logs go to stderr.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.Logger.With().Str("component", "mcp").Logger()
			return mcp.NewServer(c.client(), version, logger).Run(ctx)
		},
	}
}
