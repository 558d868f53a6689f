package scanlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hamtools/rigscan/internal/chanlist"
)

const maxBatchSize = 100

// WithMaxBatchSize sets how many buffered readings are stored within a
// single database transaction.
func WithMaxBatchSize(size int) func(*Run) {
	return func(r *Run) {
		if size > 0 {
			r.maxBatch = size
		}
	}
}

// Run binds a session to the store and implements the engine's run
// log. Readings are buffered and written in batches; recording events
// are written immediately since there is at most one at a time.
type Run struct {
	store     *Store
	sessionID int64

	buf      []readingRow
	maxBatch int
}

type readingRow struct {
	ts       time.Time
	freq     int64
	mode     string
	name     string
	level    sql.NullFloat64
	isNewMax bool
}

// BeginRun creates a session row and returns the Run bound to it.
func (s *Store) BeginRun(ctx context.Context, host, kind string, config any, options ...func(*Run)) (*Run, error) {
	sessionID, err := s.CreateSession(ctx, host, kind, config)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	r := Run{store: s, sessionID: sessionID, maxBatch: maxBatchSize}
	for _, option := range options {
		option(&r)
	}
	return &r, nil
}

// SessionID returns the identifier of the underlying session row.
func (r *Run) SessionID() int64 { return r.sessionID }

// Reading buffers one measured target; the buffer is flushed once it
// reaches the batch size.
func (r *Run) Reading(ctx context.Context, t chanlist.Target, level *float64, newMax bool) error {
	var l sql.NullFloat64
	if level != nil {
		l.Float64 = *level
		l.Valid = true
	}

	r.buf = append(r.buf, readingRow{
		ts:       time.Now().UTC(),
		freq:     t.Freq,
		mode:     t.Mode.String(),
		name:     t.Name,
		level:    l,
		isNewMax: newMax,
	})

	if len(r.buf) >= r.maxBatch {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered readings in a single transaction.
func (r *Run) Flush(ctx context.Context) (err error) {
	if len(r.buf) == 0 {
		return nil
	}

	db, err := r.store.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]interface{}, 0, len(r.buf)*7)

	var sb strings.Builder
	sb.WriteString(insertReadingSQL)

	for i, row := range r.buf {
		values = append(values,
			r.sessionID,
			row.ts,
			row.freq,
			row.mode,
			row.name,
			row.level,
			row.isNewMax,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	r.buf = r.buf[:0]
	return nil
}

// RecordingStarted writes a recording row and returns its identifier.
func (r *Run) RecordingStarted(ctx context.Context, freq int64, at time.Time) (recordingID int64, err error) {
	db, err := r.store.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRecordingSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, r.sessionID, freq, at.UTC())
	if err != nil {
		err = fmt.Errorf("inserting recording: %w", err)
		return
	}

	recordingID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting recording ID: %w", err)
	}
	return
}

// RecordingStopped closes a recording row.
func (r *Run) RecordingStopped(ctx context.Context, recordingID int64, at time.Time) (err error) {
	db, err := r.store.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, updateRecordingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, at.UTC(), recordingID); err != nil {
		return fmt.Errorf("closing recording: %w", err)
	}
	return nil
}

// Close flushes any buffered readings.
func (r *Run) Close(ctx context.Context) error {
	return r.Flush(ctx)
}
