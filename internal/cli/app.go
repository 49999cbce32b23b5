package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/config"
	"github.com/roach88/remindsync/internal/engine"
	"github.com/roach88/remindsync/internal/localsvc"
	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
	"github.com/roach88/remindsync/internal/service"
	"github.com/roach88/remindsync/internal/store"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	local     *localsvc.Services
	gate      *permission.Gate
	reminders *service.Reminders
	out       *OutputFormatter
}

// openApp loads configuration, opens the database and wires the engine.
// The caller must call close.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	alertingPolicy, err := localsvc.ParsePolicy(cfg.Local.Alerting)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid local.alerting", err)
	}
	calendarPolicy, err := localsvc.ParsePolicy(cfg.Local.Calendar)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid local.calendar", err)
	}

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	local, err := localsvc.Open(st.DB(), alertingPolicy, calendarPolicy, logger)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open local services", err)
	}

	gate := permission.New(local.Alerts, local.Calendar, logger)
	eng := engine.New(gate,
		notify.NewScheduler(local.Alerts, gate, logger),
		calendar.NewSync(local.Calendar, gate, logger),
		engine.WithHeading(cfg.Notification.Heading),
		engine.WithLogger(logger),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		local:     local,
		gate:      gate,
		reminders: service.New(eng, st, logger),
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// withApp runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// newLogger builds the stderr logger: cfg picks level and handler, verbose
// forces debug.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
