// Package cli holds the idb command line: single lookups, an interactive
// prompt, bounded batches and the Redis-backed queue mode.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jellyneo/idb/internal/config"
	"jellyneo/idb/internal/container"
)

type containerFactory func(ctx context.Context, cfg *config.Config, opts ...container.Option) (*container.Container, error)

type app struct {
	configPath   string
	verbose      bool
	cfg          *config.Config
	newContainer containerFactory
}

// NewRootCmd builds the idb command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(container.New)
}

func newRootCmd(factory containerFactory) *cobra.Command {
	a := &app{newContainer: factory}

	root := &cobra.Command{
		Use:               "idb",
		Short:             "idb looks up item price histories in the Jellyneo Item Database.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the config file (default ./config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.itemCmd(),
		a.promptCmd(),
		a.batchCmd(),
		a.enqueueCmd(),
		a.workCmd(),
	)

	return root
}

func ExecuteContext(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	configureLogging(cfg.Log, a.verbose, cmd.ErrOrStderr())
	log.Debug("Configuration loaded successfully")
	return nil
}

func configureLogging(cfg config.LogConfig, verbose bool, out io.Writer) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}

	log.SetLevel(level)
	log.SetOutput(out)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func (a *app) open(ctx context.Context, opts ...container.Option) (*container.Container, error) {
	c, err := a.newContainer(ctx, a.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return c, nil
}
