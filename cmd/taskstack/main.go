package main

import (
	"fmt"
	"os"

	"github.com/fentz26/taskstack/internal/api"
	"github.com/fentz26/taskstack/internal/config"
	"github.com/fentz26/taskstack/internal/controlplane"
	"github.com/fentz26/taskstack/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "taskstack",
		Short:         "taskstack - a live view of your task stack",
		Long:          `taskstack shows a stack of tasks that stays in sync with its backend, oldest at the top of the screen and newest at the bottom.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			// The TUI redirects logging to a file itself.
			if cmd.Name() != "tui" {
				logging.Init(cfg.Log.Debug, nil)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default "+config.DefaultDir()+"/"+config.ConfigFile+")")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("api", "", "backend address (default http://"+config.DefaultListen+")")
	mustBind(c.v, "log.debug", root, "debug")
	mustBind(c.v, "api.base_url", root, "api")

	root.AddCommand(
		c.serveCmd(),
		c.tuiCmd(),
		c.watchCmd(),
		c.taskCmd(),
		c.mcpCmd(),
	)
	return root
}

func mustBind(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind %s flag: %v", flag, err))
	}
}

// client returns a REST client for the configured backend.
func (c *cli) client() *api.Client {
	return api.NewClient(c.cfg.API.BaseURL, api.WithTimeout(c.cfg.API.Timeout))
}

func main() {
	controlplane.Version = version
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
