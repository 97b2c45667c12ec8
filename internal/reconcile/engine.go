package reconcile

import (
	"context"
	"fmt"
	"time"

	"complaintsync/internal/complaint"
	"complaintsync/internal/config"
	"complaintsync/internal/logger"
	"complaintsync/internal/storage"
)

// Engine reconciles single records against a session. It holds no per-run
// state and may be shared by both drivers.
type Engine struct {
	strategy string
	timeout  time.Duration
	log      *logger.Logger
}

// NewEngine builds an engine. strategy is config.UpsertNative or
// config.UpsertCheck; timeout bounds every record's storage calls.
func NewEngine(strategy string, timeout time.Duration, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{strategy: strategy, timeout: timeout, log: log}
}

// Reconcile writes c through sess and reports what happened.
//
// Algorithm:
//  1. Empty or MissingID ids are Skipped without touching storage
//  2. With the native strategy and an Upserter session: one upsert
//  3. Otherwise: Exists, then Update or Insert
//
// Storage errors become a Failed outcome with a Class; Reconcile never
// returns an error and never panics. The record runs on a context detached
// from ctx's cancellation, so a shutdown signal lets it finish.
func (e *Engine) Reconcile(ctx context.Context, sess storage.Session, c *complaint.Complaint) (out Outcome) {
	out.ID = c.ID
	if c.Skippable() {
		out.Kind = Skipped
		e.log.Info("Record skipped", "id", c.ID, "outcome", out.Kind.String(), "reason", "missing id")
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{ID: c.ID, Kind: Failed, Class: Fault, Err: fmt.Errorf("panic: %v", r)}
		}
		e.logOutcome(out)
	}()

	rctx := context.WithoutCancel(ctx)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, e.timeout)
		defer cancel()
	}

	kind, err := e.write(rctx, sess, c)
	if err != nil {
		return Outcome{ID: c.ID, Kind: Failed, Class: classOf(err), Err: err}
	}
	out.Kind = kind
	return out
}

func (e *Engine) write(ctx context.Context, sess storage.Session, c *complaint.Complaint) (Kind, error) {
	if up, ok := sess.(storage.Upserter); ok && e.strategy == config.UpsertNative {
		inserted, err := up.Upsert(ctx, c)
		if err != nil {
			return Failed, err
		}
		if inserted {
			return Inserted, nil
		}
		return Updated, nil
	}

	exists, err := sess.Exists(ctx, c.ID)
	if err != nil {
		return Failed, err
	}
	if exists {
		if err := sess.Update(ctx, c); err != nil {
			return Failed, err
		}
		return Updated, nil
	}
	if err := sess.Insert(ctx, c); err != nil {
		return Failed, err
	}
	return Inserted, nil
}

func (e *Engine) logOutcome(o Outcome) {
	switch {
	case o.Kind != Failed:
		e.log.Info("Record reconciled", "id", o.ID, "outcome", o.Kind.String())
	case o.Class == ValueTooLong || o.Class == DuplicateKey:
		e.log.Warn("Record conflict, continuing", "id", o.ID, "outcome", o.Kind.String(), "class", o.Class.String(), "error", o.Err)
	default:
		e.log.Error("Record failed, continuing", "id", o.ID, "outcome", o.Kind.String(), "class", o.Class.String(), "error", o.Err)
	}
}
