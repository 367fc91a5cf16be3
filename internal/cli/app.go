package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/coffeematch/internal/config"
	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/lock"
	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/store"
)

// app is the runtime a command works with.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
	redis  *redis.Client
}

// openApp loads configuration, opens the database and builds the engine.
// The caller must Close the app.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.Config, ".env")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	logFormat := cfg.Log.Format
	if opts.LogFormat != "" {
		logFormat = opts.LogFormat
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, logFormat, opts.Verbose)

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st}

	var gw notify.Gateway = notify.LogGateway{Logger: logger}
	if url := cfg.Delivery.Webhook.URL; url != "" {
		gw = notify.NewWebhookGateway(url, cfg.Delivery.Webhook.Timeout.Std())
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		ropts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "invalid redis url", err)
		}
		a.redis = redis.NewClient(ropts)
		locker = lock.NewRedis(a.redis)
	}

	a.engine = engine.New(st, gw,
		engine.WithLogger(logger),
		engine.WithLocker(locker),
		engine.WithInactivityThreshold(cfg.InactivityThreshold),
		engine.WithAnswerWindow(cfg.AnswerWindow.Std()),
		engine.WithDeliveryConcurrency(cfg.Delivery.Concurrency),
	)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("error closing redis", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// currentPeriod is the period key of the engine clock in the configured
// time zone.
func (a *app) currentPeriod() string {
	return model.PeriodKey(a.engine.Now().In(a.cfg.Location()))
}

// periodArg returns args[0] when given, otherwise the current period or,
// with previous set, the one before it.
func (a *app) periodArg(args []string, previous bool) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	key := a.currentPeriod()
	if previous {
		return model.PreviousPeriod(key)
	}
	return key, nil
}

func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
