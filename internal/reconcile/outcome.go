// Package reconcile decides, per complaint, whether to insert, update or
// skip it, and applies that decision to a storage session.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"complaintsync/internal/storage"
)

// Kind is the terminal state of one reconciliation attempt.
type Kind uint8

const (
	Inserted Kind = iota + 1
	Updated
	Skipped
	Failed
)

func (k Kind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Class says why a record failed. Every class is recoverable at record level.
type Class uint8

const (
	ClassNone Class = iota
	ValueTooLong
	DuplicateKey
	Timeout
	Fault
	Parse
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return ""
	case ValueTooLong:
		return "value_too_long"
	case DuplicateKey:
		return "duplicate_key"
	case Timeout:
		return "timeout"
	case Fault:
		return "fault"
	case Parse:
		return "parse"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Outcome is the result of reconciling one record.
type Outcome struct {
	ID    string
	Kind  Kind
	Class Class // set only when Kind is Failed
	Err   error
}

// ParseFailure is the outcome for a source record that could not be read at all.
func ParseFailure(id string, err error) Outcome {
	return Outcome{ID: id, Kind: Failed, Class: Parse, Err: err}
}

// classOf maps a storage error onto a failure class.
func classOf(err error) Class {
	switch {
	case errors.Is(err, storage.ErrValueTooLong):
		return ValueTooLong
	case errors.Is(err, storage.ErrDuplicateKey):
		return DuplicateKey
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	return Fault
}

// Summary aggregates the outcomes of one batch run.
type Summary struct {
	RunID    string
	Driver   string
	Started  time.Time
	Finished time.Time

	Inserted int
	Updated  int
	Skipped  int
	Failed   int

	// Duplicates counts ids seen more than once within the same batch.
	Duplicates int

	// Failures keeps every failed outcome, in order.
	Failures []Outcome
}

// NewSummary starts a summary for driver with a fresh run id.
func NewSummary(driver string) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Driver:  driver,
		Started: time.Now(),
	}
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	switch o.Kind {
	case Inserted:
		s.Inserted++
	case Updated:
		s.Updated++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
		s.Failures = append(s.Failures, o)
	}
}

// Total is the number of outcomes added.
func (s *Summary) Total() int {
	return s.Inserted + s.Updated + s.Skipped + s.Failed
}

// Finish stamps the end time.
func (s *Summary) Finish() {
	s.Finished = time.Now()
}

// Duration is the wall time of the run, or the time so far if unfinished.
func (s *Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// LogFields renders the counters as logger key/value pairs.
func (s *Summary) LogFields() []interface{} {
	return []interface{}{
		"run_id", s.RunID,
		"driver", s.Driver,
		"total", s.Total(),
		"inserted", s.Inserted,
		"updated", s.Updated,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"duplicates", s.Duplicates,
		"duration", s.Duration().Round(time.Millisecond).String(),
	}
}
