package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"Sentinel6G/internal/app"
	"Sentinel6G/internal/config"
	"Sentinel6G/internal/logging"
)

type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "sentinel",
		Short: "6G news intelligence pipeline",
		Long: `sentinel collects 6G news from the configured feeds, analyses each new
article and publishes regional momentum, the influence matrix and a digest
into the data directory.

Example usage:
  sentinel run                        # One full batch run
  sentinel run --config sentinel.yaml
  sentinel aggregate                  # Rebuild momentum from the archive
  sentinel reset --seen               # Forget processed articles
  sentinel watch --every 720h         # Run now and then every 30 days`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $SENTINEL_CONFIG)")

	root.AddCommand(c.runCmd(), c.aggregateCmd(), c.resetCmd(), c.watchCmd())
	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging)
	return nil
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, analyse, aggregate and publish once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			_, err := app.New(c.cfg, c.logger).Run(ctx)
			return err
		},
	}
}

func (c *cli) aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute momentum and the influence matrix from the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			result, err := app.New(c.cfg, c.logger).Aggregate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d momentum records, %d profiles excluded\n", len(result.Records), len(result.Excluded))
			return nil
		},
	}
}

func (c *cli) resetCmd() *cobra.Command {
	var seen, strategies bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the seen store and/or the strategy cache",
		Long: `Clear persisted run state.

Examples:
  sentinel reset --seen               # Re-analyse every article still in the feeds
  sentinel reset --strategies         # Re-learn fetch strategies
  sentinel reset --seen --strategies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.New(c.cfg, c.logger).Reset(seen, strategies)
		},
	}
	cmd.Flags().BoolVar(&seen, "seen", false, "clear the seen article store")
	cmd.Flags().BoolVar(&strategies, "strategies", false, "clear the fetch strategy cache")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run now and then on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.New(c.cfg, c.logger).Watch(ctx, every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 30*24*time.Hour, "interval between runs")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
