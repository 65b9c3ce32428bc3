// Command bramble builds business-entity graphs from a company registry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ramsey-B/bramble/config"
	"github.com/Ramsey-B/bramble/pkg/logging"
)

// cli carries state shared by every command
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     ectologger.Logger
	flush      func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{v: config.New(), flush: func() {}}

	root := &cobra.Command{
		Use:           "bramble",
		Short:         "Build and refine business-entity graphs from a company registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.flush()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty-logs", false, "human readable console logs")
	flags.String("registry-endpoint", "", "registry base URL")
	_ = c.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("pretty_logs", flags.Lookup("pretty-logs"))
	_ = c.v.BindPFlag("registry_endpoint", flags.Lookup("registry-endpoint"))

	root.AddCommand(
		newServeCommand(c),
		newSearchCommand(c),
		newTidyCommand(c),
		newComposeCommand(c),
		newMigrateCommand(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	logger, flush, err := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.PrettyLogs})
	if err != nil {
		return err
	}
	c.cfg, c.logger, c.flush = cfg, logger, flush
	return nil
}

// run starts the app, hands it to fn and always stops it
func (c *cli) run(ctx context.Context, fn func(ctx context.Context, a *app) error) (err error) {
	a := newApp(c.cfg, c.logger)
	if err := a.start(ctx); err != nil {
		_ = a.stop(context.WithoutCancel(ctx))
		return err
	}
	defer func() {
		if stopErr := a.stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()
	return fn(ctx, a)
}
