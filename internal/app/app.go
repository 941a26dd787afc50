// Package app assembles the bot: config, logging, state, the sheet
// collaborator, the Telegram adapter, the reconciliation scheduler and the
// command router.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jobalertbot/internal/bot"
	"jobalertbot/internal/broadcast"
	"jobalertbot/internal/config"
	"jobalertbot/internal/health"
	"jobalertbot/internal/reconcile"
	"jobalertbot/internal/render"
	"jobalertbot/internal/sheet"
	"jobalertbot/internal/state"
	"jobalertbot/internal/transport"
	"jobalertbot/internal/transport/telegram"
	"jobalertbot/pkg/logx"
)

// firstTickDelay is how soon after startup the initial job check runs;
// the regular interval applies afterwards.
const firstTickDelay = 10 * time.Second

type App struct {
	cfgPath string
	cfg     *config.Config

	log      zerolog.Logger
	logClose func() error

	store      state.Store
	source     *sheet.Client
	adapter    *telegram.Adapter
	reconciler *reconcile.Service
	router     *bot.Router
	health     *health.Server

	cron   *cron.Cron
	cronID cron.EntryID
	cronMu sync.Mutex

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New loads configuration and builds every component. Sheet credential
// failures abort here: the process is useless without its source of truth.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, logClose, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfgPath: cfgPath, cfg: cfg, log: log, logClose: logClose}
	if err := a.build(ctx); err != nil {
		_ = logClose()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := state.Open(state.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	a.store = store

	source, err := sheet.New(ctx, sheet.Config{
		SpreadsheetID:   cfg.Sheet.SpreadsheetID,
		SheetName:       cfg.Sheet.SheetName,
		CredentialsFile: cfg.Sheet.CredentialsFile,
		CredentialsJSON: cfg.Sheet.CredentialsJSON,
		DateFormats:     cfg.Jobs.DateFormats,
	}, a.log)
	if err != nil {
		return err
	}
	a.source = source

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}
	a.adapter = adapter

	tickTimeout, err := config.ParseDurationField("scheduler.tick_timeout", cfg.Scheduler.TickTimeout)
	if err != nil {
		return err
	}
	a.reconciler = reconcile.New(a.log, store, source, adapter, reconcile.Config{
		Render: render.Config{
			DateFormats:         cfg.Jobs.DateFormats,
			OutputDateFormat:    cfg.Jobs.OutputDateFormat,
			DefaultSubstitution: cfg.Jobs.DefaultSubstitution,
			MaxMessageLen:       cfg.Jobs.MaxMessageLen,
		},
		FreeTierLimit: cfg.Jobs.FreeTierLimit,
		BotURL:        cfg.Telegram.BotURL,
		TickTimeout:   tickTimeout,
	})

	broadcaster := broadcast.New(a.log, adapter, broadcast.Config{})
	a.router = bot.NewRouter(a.log, adapter, store, a.reconciler, broadcaster, bot.Config{
		AdminID:   cfg.Telegram.AdminID,
		BotURL:    cfg.Telegram.BotURL,
		UPIID:     cfg.Payment.UPIID,
		Amount:    cfg.Payment.Amount,
		PayeeName: cfg.Payment.PayeeName,
	})

	a.health = health.NewServer(a.log)
	a.updates = make(chan transport.Update, 256)
	return nil
}

// CheckOnce runs a single reconciliation pass and returns. Used by the
// one-shot CLI command.
func (a *App) CheckOnce(ctx context.Context) error {
	return a.reconciler.Tick(ctx)
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.health.Start(health.Config{Enabled: a.cfg.Health.Enabled, Addr: a.cfg.Health.Addr}); err != nil {
		return fmt.Errorf("health endpoint: %w", err)
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	if err := a.startScheduler(runCtx); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := config.Watch(runCtx, a.cfgPath, a.log, func(cfg *config.Config) { a.applyConfig(runCtx, cfg) })
		if err != nil {
			a.log.Warn().Err(err).Msg("config watcher failed to start")
		}
	}()

	// First check shortly after startup so a fresh deploy notifies
	// without waiting a full interval.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTimer(firstTickDelay)
		defer t.Stop()
		select {
		case <-runCtx.Done():
		case <-t.C:
			if err := a.reconciler.Tick(runCtx); err != nil {
				a.log.Error().Err(err).Msg("initial job check failed")
			}
		}
	}()

	a.notifySystemd(runCtx)
	a.log.Info().Msg("bot started")
	return nil
}

func (a *App) startScheduler(ctx context.Context) error {
	interval, err := a.cfg.CheckInterval()
	if err != nil {
		return err
	}

	loc := time.Local
	if tz := a.cfg.Scheduler.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
		loc = l
	}

	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	a.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	id, err := a.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := a.reconciler.Tick(ctx); err != nil {
			a.log.Error().Err(err).Msg("job check failed")
		}
	})
	if err != nil {
		return err
	}
	a.cronID = id
	a.cron.Start()
	a.log.Info().Dur("interval", interval).Msg("reconciliation scheduler started")
	return nil
}

// applyConfig handles hot-reloadable settings. Only the check interval is
// applied live; everything else takes effect on restart.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	oldInterval, _ := a.cfg.CheckInterval()
	newInterval, err := cfg.CheckInterval()
	if err != nil || newInterval == oldInterval {
		return
	}

	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	if a.cron == nil {
		return
	}
	a.cron.Remove(a.cronID)
	id, err := a.cron.AddFunc(fmt.Sprintf("@every %s", newInterval), func() {
		if err := a.reconciler.Tick(ctx); err != nil {
			a.log.Error().Err(err).Msg("job check failed")
		}
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("could not apply new check interval")
		return
	}
	a.cronID = id
	a.cfg.Scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	a.log.Info().Dur("interval", newInterval).Msg("check interval updated")
}

// notifySystemd reports readiness and keeps the watchdog fed when the
// process runs under systemd. No-ops elsewhere.
func (a *App) notifySystemd(ctx context.Context) {
	if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); !ok {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cancel != nil {
		a.cancel()
	}
	a.cronMu.Lock()
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	a.cronMu.Unlock()

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn().Err(err).Msg("adapter stop")
	}
	if err := a.health.Stop(ctx); err != nil {
		a.log.Warn().Err(err).Msg("health stop")
	}
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close")
	}
	a.log.Info().Msg("bot stopped")
	return a.logClose()
}

// Close releases resources for an App that was never started.
func (a *App) Close() error {
	if a.store != nil {
		_ = a.store.Close()
	}
	return a.logClose()
}
