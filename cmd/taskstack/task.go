package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/taskstack/internal/api"
	"github.com/fentz26/taskstack/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(
		c.taskListCmd(),
		c.taskPushCmd(),
		c.taskPopCmd(),
		c.taskPeekCmd(),
		c.taskToggleCmd(),
		c.taskImportCmd(),
	)
	return cmd
}

func (c *cli) taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks, top of the stack first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := c.client().ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTIMEFRAME\tDONE")
			for _, t := range tasks {
				done := ""
				if t.Completed {
					done = "x"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, truncate(t.Name, 40), t.Timeframe, done)
			}
			return w.Flush()
		},
	}
}

func (c *cli) taskPushCmd() *cobra.Command {
	var timeframe string
	var completed bool

	cmd := &cobra.Command{
		Use:   "push <name>",
		Short: "Push a task onto the stack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := c.client().PushTask(cmd.Context(), models.NewTask{
				Name:      strings.Join(args, " "),
				Timeframe: timeframe,
				Completed: completed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed task %s: %s\n", task.ID, task.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "how long the task should take")
	cmd.Flags().BoolVar(&completed, "completed", false, "create the task already completed")
	return cmd
}

func (c *cli) taskPopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pop",
		Short: "Remove the task on top of the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := c.client().PopTask(cmd.Context())
			if errors.Is(err, api.ErrEmptyStack) {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks to pop")
				return nil
			}
			if err != nil {
				return err
			}
			if task.ID == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Popped task")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Popped task %s: %s\n", task.ID, task.Name)
			return nil
		},
	}
}

func (c *cli) taskPeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Show the task on top of the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := c.client().PeekTask(cmd.Context())
			if errors.Is(err, api.ErrEmptyStack) {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks in the list")
				return nil
			}
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

func (c *cli) taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Flip a task between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := c.client().ToggleTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
}

func (c *cli) taskImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Push every task listed in a YAML or JSON file",
		Long: `Reads a list of tasks and pushes them in file order, so the last entry
ends up on top of the stack. "-" reads from stdin.

  - name: Finish PhD
    timeframe: 4.42 years
  - name: Finish courses
    timeframe: 4.5 months`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			tasks, err := readTasks(r)
			if err != nil {
				return err
			}

			client := c.client()
			for i, in := range tasks {
				task, err := client.PushTask(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("push task %d (%s): %w", i+1, in.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed task %s: %s\n", task.ID, task.Name)
			}
			return nil
		},
	}
}

// readTasks decodes a YAML (or JSON) list of tasks. Entries without a name
// are rejected.
func readTasks(r io.Reader) ([]models.NewTask, error) {
	var tasks []models.NewTask
	if err := yaml.NewDecoder(r).Decode(&tasks); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	for i := range tasks {
		tasks[i].Name = strings.TrimSpace(tasks[i].Name)
		tasks[i].Timeframe = strings.TrimSpace(tasks[i].Timeframe)
		if tasks[i].Name == "" {
			return nil, fmt.Errorf("task %d: name is required", i+1)
		}
	}
	return tasks, nil
}

func printTask(w io.Writer, t models.Task) {
	fmt.Fprintf(w, "ID:        %s\n", t.ID)
	fmt.Fprintf(w, "Name:      %s\n", t.Name)
	fmt.Fprintf(w, "Timeframe: %s\n", t.Timeframe)
	fmt.Fprintf(w, "Completed: %t\n", t.Completed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
