// Package importer is the bulk import driver: it reconciles every row of a
// CSV export of the page store into the complaint table.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"complaintsync/internal/complaint"
	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/logger"
	"complaintsync/internal/reconcile"
	"complaintsync/internal/storage"
)

// Driver is the name the importer reports under in logs and metrics.
const Driver = "import"

// Importer runs bulk imports. It is safe to reuse across runs but a single
// run is sequential.
type Importer struct {
	db     storage.DB
	mapper *complaint.Mapper
	engine *reconcile.Engine
	log    *logger.Logger
}

func New(db storage.DB, mapper *complaint.Mapper, engine *reconcile.Engine, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{db: db, mapper: mapper, engine: engine, log: log.With("driver", Driver)}
}

// Run imports the export at path.
//
// Flow:
//  1. Open the file and read its header
//  2. Acquire one session (failure: ConnectError, nothing written)
//  3. Map and reconcile row by row; malformed lines count as Parse failures
//  4. Release the session and return the summary
//
// An id that already appeared earlier in the file is logged as a conflict and
// counted in Summary.Duplicates; the later row overwrites the earlier one.
// Once ctx is cancelled no further row is started.
func (im *Importer) Run(ctx context.Context, path string) (*reconcile.Summary, error) {
	s := reconcile.NewSummary(Driver)
	log := im.log.With("run_id", s.RunID)
	defer s.Finish()

	f, err := os.Open(path)
	if err != nil {
		return s, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	rd, err := NewReader(f)
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}

	sess, err := im.db.Acquire(ctx)
	if err != nil {
		return s, apperrors.NewConnectError("acquire session for import", err)
	}
	defer sess.Release()

	log.Info("Import started", "file", path, "columns", len(rd.Header()))

	seen := make(map[string]int)
	for {
		if ctx.Err() != nil {
			log.Warn("Import interrupted, no further rows started", "processed", s.Total())
			break
		}

		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return s, fmt.Errorf("failed to read import file: %w", err)
			}
			id := fmt.Sprintf("line %d", pe.StartLine)
			log.Warn("Malformed row, continuing", "line", pe.StartLine, "error", err)
			s.Add(reconcile.ParseFailure(id, err))
			continue
		}

		c := im.mapper.FromRow(row)
		if !c.Skippable() {
			if first, dup := seen[c.ID]; dup {
				s.Duplicates++
				log.Warn("Duplicate id in batch, later row wins", "id", c.ID, "class", reconcile.DuplicateKey.String(), "first_line", first, "line", rd.Line())
			} else {
				seen[c.ID] = rd.Line()
			}
		}
		s.Add(im.engine.Reconcile(ctx, sess, &c))
	}

	s.Finish()
	log.Info("Import finished", s.LogFields()...)
	return s, nil
}
