package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/alerting"
	"pnt-integrity-alerts/internal/config"
	"pnt-integrity-alerts/internal/ingest"
	"pnt-integrity-alerts/internal/scheduler"
	"pnt-integrity-alerts/internal/service"
	"pnt-integrity-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store) (*service.Service, error) {
	entries, err := service.BuildMonitors(a.Config.Monitors, a.Logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no monitors configured")
	}

	var alarmStore storage.AlarmStore
	var snapStore storage.SnapshotStore
	if store != nil {
		alarmStore = store
		snapStore = store
	}

	return service.New(a.Config, entries, alarmStore, snapStore, a.newNotifier(), a.Logger), nil
}

// Run consumes the live message stream from stdin until it closes or a
// signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.newService(store)
	if err != nil {
		return err
	}

	if a.Config.Snapshot.Enabled && store != nil {
		sched := scheduler.New(scheduler.Options{
			Interval:      a.Config.Snapshot.Interval,
			AlignToBucket: a.Config.Snapshot.AlignToBucket,
			StartupDelay:  a.Config.Snapshot.StartupDelay,
		}, a.Logger)
		go func() {
			if err := sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
				return svc.FlushSnapshots(ctx)
			}); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("snapshot scheduler stopped")
			}
		}()
	}

	src := ingest.NewNDJSONSource(os.Stdin, a.Logger)

	a.Logger.Info().Int("monitors", len(svc.Entries())).Msg("starting monitoring service")
	err = svc.Run(ctx, src)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	if store != nil {
		// Final statuses still get recorded when the stream ends cleanly.
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := svc.FlushSnapshots(flushCtx); err != nil {
			a.Logger.Error().Err(err).Msg("final snapshot flush failed")
		}
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	Monitor   string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	// Snapshots switches the listing from alarm records to status snapshots.
	Snapshots bool
}

// ReplayOptions configure the replay command.
type ReplayOptions struct {
	Path string
}

// SimulateOptions configure the simulated alarm.
type SimulateOptions struct {
	Monitor string
	Metric  float64
}
