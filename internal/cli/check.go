package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/pulse/agent"
	"github.com/jonwraymond/pulse/config"
	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/observe"
)

// ErrUnhealthy is returned by check when the overall status is not healthy.
var ErrUnhealthy = errors.New("pulse: not healthy")

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every probe once and print the health report",
		Long: `check runs the built-in and dependency probes once, prints the health
report as JSON and exits non-zero unless the overall status is healthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return check(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the check")
	return cmd
}

func check(ctx context.Context, cfg *config.Config, out io.Writer) error {
	// One report only; no background collection.
	cfg.Metrics.Enabled = false

	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return err
	}
	defer shutdownObserver(obs)

	deps, err := connectDependencies(ctx, cfg, obs.Logger())
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := agent.New(ctx, cfg, agent.Options{Observer: obs, Probes: deps.probes()})
	if err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(context.Background()) }()
	if err := a.Start(ctx); err != nil {
		return err
	}

	report := a.Report(ctx)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if report.Status != health.StatusHealthy {
		return fmt.Errorf("%w: %s", ErrUnhealthy, report.Status)
	}
	return nil
}
