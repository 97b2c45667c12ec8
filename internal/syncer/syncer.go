// Package syncer is the incremental sync driver: it pulls recently edited
// pages from the page store and reconciles them into the complaint table.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"complaintsync/internal/complaint"
	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/lock"
	"complaintsync/internal/logger"
	"complaintsync/internal/notion"
	"complaintsync/internal/reconcile"
	"complaintsync/internal/storage"
)

// Driver is the name the syncer reports under in logs and metrics.
const Driver = "sync"

// ErrRunInProgress is returned when another run holds the run guard.
var ErrRunInProgress = errors.New("sync run already in progress")

// Source is the part of the page store client the syncer needs.
type Source interface {
	QueryDatabase(ctx context.Context, q notion.Query) (*notion.QueryResult, error)
}

// RunHook observes every run attempt, including ones that could not start.
// The summary is never nil.
type RunHook func(ctx context.Context, s *reconcile.Summary, err error)

// Syncer runs incremental syncs.
type Syncer struct {
	src    Source
	db     storage.DB
	mapper *complaint.Mapper
	engine *reconcile.Engine
	window time.Duration

	guard lock.Guard
	hook  RunHook
	now   func() time.Time
	log   *logger.Logger
}

type Option func(*Syncer)

// WithGuard replaces the default in-process guard.
func WithGuard(g lock.Guard) Option {
	return func(s *Syncer) { s.guard = g }
}

// WithHook installs a hook called after every run attempt.
func WithHook(h RunHook) Option {
	return func(s *Syncer) { s.hook = h }
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New builds a syncer querying the trailing window on every run.
func New(src Source, db storage.DB, mapper *complaint.Mapper, engine *reconcile.Engine, window time.Duration, log *logger.Logger, opts ...Option) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	s := &Syncer{
		src:    src,
		db:     db,
		mapper: mapper,
		engine: engine,
		window: window,
		guard:  lock.NewLocal(),
		now:    time.Now,
		log:    log.With("driver", Driver),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run syncs pages edited within the trailing window, newest first.
//
// Errors end only this run:
//   - ErrRunInProgress: another run holds the guard, nothing was done
//   - ConnectError: no session could be acquired
//   - FetchError: the page store query failed
//
// Per-record failures are in the summary, never in the error.
func (s *Syncer) Run(ctx context.Context) (*reconcile.Summary, error) {
	cutoff := s.now().Add(-s.window)
	return s.run(ctx, &cutoff)
}

// RunAll re-reconciles the most recent pages without a time cutoff, up to
// the client's page limit.
func (s *Syncer) RunAll(ctx context.Context) (*reconcile.Summary, error) {
	return s.run(ctx, nil)
}

func (s *Syncer) run(ctx context.Context, after *time.Time) (sum *reconcile.Summary, err error) {
	sum = reconcile.NewSummary(Driver)
	log := s.log.With("run_id", sum.RunID)
	defer func() {
		sum.Finish()
		if s.hook != nil {
			s.hook(ctx, sum, err)
		}
	}()

	release, ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to take run guard: %w", err)
	}
	if !ok {
		log.Info("Previous sync still running, skipping this run")
		return sum, ErrRunInProgress
	}
	defer release()

	sess, err := s.db.Acquire(ctx)
	if err != nil {
		return sum, apperrors.NewConnectError("acquire session for sync", err)
	}
	defer sess.Release()

	q := notion.Query{Sort: notion.Descending, After: after}
	if after != nil {
		log.Info("Sync started", "after", after.Format(time.RFC3339), "window", s.window.String())
	} else {
		log.Info("Sync started", "after", "none")
	}

	res, err := s.src.QueryDatabase(ctx, q)
	if err != nil {
		if !apperrors.IsFetchError(err) {
			err = apperrors.NewFetchError("query pages", err)
		}
		return sum, err
	}
	if res.HasMore {
		log.Warn("Window holds more pages than one run reads", "next_cursor", res.NextCursor)
	}

	for _, p := range res.Pages {
		if ctx.Err() != nil {
			log.Warn("Sync interrupted, no further records started", "processed", sum.Total(), "fetched", len(res.Pages))
			break
		}
		c := s.mapper.FromPage(p)
		sum.Add(s.engine.Reconcile(ctx, sess, &c))
	}

	sum.Finish()
	log.Info("Sync finished", sum.LogFields()...)
	return sum, nil
}

// Loop runs a sync now and then on every tick until ctx is done. Failed
// runs are logged and retried on the next tick.
func (s *Syncer) Loop(ctx context.Context, interval time.Duration) error {
	s.log.Info("Starting sync loop", "interval", interval.String(), "window", s.window.String())

	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sync loop stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	_, err := s.Run(ctx)
	switch {
	case err == nil, errors.Is(err, ErrRunInProgress):
	case ctx.Err() != nil:
		s.log.Info("Sync run cancelled", "error", err)
	default:
		s.log.Error("Sync run failed, will retry on next tick", "error", err)
	}
}
