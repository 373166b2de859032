// Package cli implements the pulse command tree.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/pulse/config"
	"github.com/jonwraymond/pulse/observe"
)

// observerShutdownTimeout bounds the final telemetry flush.
const observerShutdownTimeout = 5 * time.Second

type rootOptions struct {
	configPath string
	envFiles   []string
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "In-process health and metrics agent",
		Long: `pulse samples process resources, tracks requests, runs health probes and
serves the aggregated report over HTTP.

Configuration comes from PULSE_* environment variables, an optional .env file
and an optional YAML file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file overlaid on the environment")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default: ./.env when present)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath, o.envFiles...)
}

func shutdownObserver(obs observe.Observer) {
	ctx, cancel := context.WithTimeout(context.Background(), observerShutdownTimeout)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		obs.Logger().Warn(ctx, "observer shutdown failed", observe.F("error", err))
	}
}
