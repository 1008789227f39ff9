package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/taskstack/internal/syncclient"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the stack every time it changes",
		Long:  `Follows the backend event stream without a UI and prints the stack in display order, oldest first, after every change.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the loaded stack and exit")
	return cmd
}

func (c *cli) runWatch(ctx context.Context, out, errOut io.Writer, once bool) error {
	policy, err := c.cfg.ReconnectPolicy()
	if err != nil {
		return err
	}

	sc := syncclient.New(c.client(),
		syncclient.WithLogger(log.Logger),
		syncclient.WithReconnect(policy),
		syncclient.WithNotifier(syncclient.NotifierFunc(func(kind syncclient.Kind, message string) {
			fmt.Fprintf(errOut, "[%s] %s\n", kind, message)
		})),
	)
	defer sc.Close()

	if once {
		if err := sc.Load(ctx); err != nil {
			return err
		}
		printStack(out, sc)
		return nil
	}

	// The load queues a Seeded change, so the first print comes from the loop.
	if err := sc.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-sc.Changes():
			if !ok {
				return nil
			}
			if ch.Kind == syncclient.StatusChanged {
				continue
			}
			printStack(out, sc)
		}
	}
}

func printStack(w io.Writer, sc *syncclient.Client) {
	display := sc.Display()
	fmt.Fprintf(w, "--- %d task(s), oldest first ---\n", len(display))
	for i, t := range display {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("%2d. [%s] %s", i+1, mark, t.Name)
		if t.Timeframe != "" {
			line += " - " + t.Timeframe
		}
		fmt.Fprintln(w, line)
	}
}
