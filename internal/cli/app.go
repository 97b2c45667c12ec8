package cli

import (
	"context"
	"errors"
	"time"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/health"
	"complaintsync/internal/lock"
	"complaintsync/internal/logger"
	"complaintsync/internal/metrics"
	"complaintsync/internal/reconcile"
	"complaintsync/internal/storage"
	"complaintsync/internal/summary"
	"complaintsync/internal/syncer"
	"complaintsync/internal/telegram"
	"complaintsync/internal/timestamp"
)

const notifyTimeout = 30 * time.Second

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      storage.DB
	mapper  *complaint.Mapper
	engine  *reconcile.Engine
	metrics *metrics.Metrics
	monitor *health.Monitor
	tg      *telegram.Client
}

// loadConfig reads configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.SchemaFile != "" {
		cfg.SchemaFile = opts.SchemaFile
	}
	if opts.LogMode != "" {
		cfg.LogMode = opts.LogMode
	}
	if opts.Debug {
		cfg.DebugMode = true
	}
	return cfg, nil
}

// newApp builds the shared components and opens the database.
//
// Initialization order:
//  1. Logger
//  2. Property schema and record mapper
//  3. Telegram client (optional) and metrics
//  4. Database pool; a failure here is a ConnectError and is alerted
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}

	schema, err := complaint.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return nil, apperrors.NewConfigError("SCHEMA_FILE", err.Error())
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		mapper:  complaint.NewMapper(schema, timestamp.New(cfg.Location(), log)),
		engine:  reconcile.NewEngine(cfg.UpsertMode, cfg.DBQueryTimeout, log),
		metrics: metrics.New(),
		monitor: health.NewMonitor(),
		tg:      telegram.NewClient(cfg, log),
	}

	log.Info("Opening database", "driver", cfg.DBDriver, "table", cfg.DBTable)
	db, err := storage.Open(ctx, cfg, log)
	if err != nil {
		err = apperrors.NewConnectError("open "+cfg.DBDriver+" database", err)
		a.alert(ctx, err)
		log.Sync()
		return nil, err
	}
	a.db = db
	return a, nil
}

// guard builds the run guard: always in-process, plus Redis when configured.
func (a *app) guard(ctx context.Context) (lock.Guard, func(), error) {
	local := lock.NewLocal()
	if a.cfg.RedisURL == "" {
		return local, func() {}, nil
	}
	rg, err := lock.NewRedis(ctx, a.cfg.RedisURL, a.cfg.LockKey, a.cfg.LockTTL, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("Distributed run guard enabled", "key", a.cfg.LockKey, "ttl", a.cfg.LockTTL.String())
	return lock.Chain{local, rg}, func() { rg.Close() }, nil
}

// report is the post-run hook shared by both drivers: it feeds metrics and
// the health monitor, alerts on a run that could not complete and sends the
// failure table when records failed.
func (a *app) report(ctx context.Context, s *reconcile.Summary, runErr error) {
	if errors.Is(runErr, syncer.ErrRunInProgress) {
		a.metrics.ObserveSkippedRun(s.Driver)
		return
	}

	status := metrics.StatusOK
	if runErr != nil {
		status = metrics.StatusFailed
	}
	a.metrics.ObserveRun(s, status)
	a.monitor.RecordRun(s.Driver, s, runErr)

	if runErr != nil {
		if ctx.Err() == nil {
			a.alert(ctx, runErr)
		}
		return
	}
	if s.Failed == 0 || a.tg == nil {
		return
	}

	png, err := summary.RenderFailures(summary.FromSummary(s))
	if err != nil {
		a.log.Warn("Failed to render failure table, sending text report", "error", err)
		png = nil
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := a.tg.SendBatchReport(nctx, s, png); err != nil {
		a.log.Warn("Failed to send batch report", "error", err)
	}
}

// alert sends a critical alert for an error that ended a run.
func (a *app) alert(ctx context.Context, err error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if serr := a.tg.SendCriticalAlert(nctx, errorType(err), err.Error(), 0); serr != nil {
		a.log.Warn("Failed to send critical alert", "error", serr)
	}
}

func errorType(err error) string {
	switch {
	case apperrors.IsConnectError(err):
		return "Database Connect Failure"
	case apperrors.IsFetchError(err):
		return "Page Store Fetch Failure"
	case apperrors.IsConfigError(err):
		return "Configuration Error"
	}
	return "Run Failure"
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	a.log.Info("Database pool closed")
	a.log.Sync()
}
