package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/coffeematch/internal/api"
	"github.com/roach88/coffeematch/internal/schedule"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr        string
	NoScheduler bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the lifecycle scheduler",
		Long: `Serve the HTTP API. When a Redis URL is configured, the scheduler also
runs: it enqueues the monthly round, the follow-up dispatch and the
inactivity check on their cron schedules and processes them.

Example:
  coffeematch serve --config coffeematch.yaml
  COFFEEMATCH_REDIS_URL=redis://localhost:6379/0 coffeematch serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&opts.NoScheduler, "no-scheduler", false, "do not run the scheduler even if Redis is configured")

	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(ctx, addr, api.NewRouter(a.engine, a.logger), a.logger)
	})

	switch {
	case opts.NoScheduler:
		a.logger.Info("scheduler disabled by flag")
	case a.cfg.Redis.URL == "":
		a.logger.Info("scheduler disabled: no redis url configured")
	default:
		loc := a.cfg.Location()
		srv, err := schedule.NewServer(a.cfg.Redis.URL, a.cfg.Schedule, loc,
			schedule.NewHandlers(a.engine, loc, a.logger), a.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start scheduler", err)
		}
		g.Go(func() error { return srv.Run(ctx) })
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	a.logger.Info("stopped gracefully")
	return nil
}

var taskTypes = map[string]string{
	"round":      schedule.TypeRound,
	"followups":  schedule.TypeFollowUp,
	"inactivity": schedule.TypeInactivity,
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <round|followups|inactivity> [period]",
		Short: "Queue a lifecycle job for the scheduler's worker",
		Long: `Queue a one-off lifecycle job on Redis. Without a period the worker
derives it from its clock when the job runs.

Example:
  coffeematch enqueue round 2025-03`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskType, ok := taskTypes[args[0]]
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown job %q: want round, followups or inactivity", args[0]))
			}
			period := ""
			if len(args) == 2 {
				period = args[1]
			}

			a, err := openApp(opts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Redis.URL == "" {
				return NewExitError(ExitCommandError, "enqueue needs a redis url (redis.url or COFFEEMATCH_REDIS_URL)")
			}

			q, err := schedule.NewEnqueuer(a.cfg.Redis.URL)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to queue", err)
			}
			defer q.Close()

			id, err := q.Enqueue(cmd.Context(), taskType, period, a.cfg.Schedule.MaxRetry)
			if err != nil {
				return WrapExitError(ExitFailure, "enqueue failed", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"task_id": id, "type": taskType, "period_key": period}, func(w io.Writer) {
				fmt.Fprintf(w, "Queued %s as %s\n", taskType, id)
			})
		},
	}
}
