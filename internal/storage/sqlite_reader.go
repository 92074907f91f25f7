package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ReaderOption configures a SampleReader with filtering criteria.
type ReaderOption func(*SampleReader)

// WithStartTimestampUS sets the minimum sample timestamp, in microseconds.
func WithStartTimestampUS(ts float64) ReaderOption {
	return func(r *SampleReader) {
		r.startUS = &ts
	}
}

// WithEndTimestampUS sets the maximum sample timestamp, in microseconds.
func WithEndTimestampUS(ts float64) ReaderOption {
	return func(r *SampleReader) {
		r.endUS = &ts
	}
}

// WithTimestampRangeUS sets both timestamp bounds, in microseconds.
func WithTimestampRangeUS(startUS, endUS float64) ReaderOption {
	return func(r *SampleReader) {
		r.startUS = &startUS
		r.endUS = &endUS
	}
}

// SampleReader iterates over one trial's stored sample series in
// timestamp order. Each reader instance must only be used from a single
// goroutine and must be closed after use.
type SampleReader struct {
	db          *sql.DB
	sessionID   int64
	trialNumber uint32

	startUS *float64
	endUS   *float64

	current SamplePoint
	rows    *sql.Rows
	err     error
}

func newSampleReader(ctx context.Context, db *sql.DB, sessionID int64, trialNumber uint32, opts ...ReaderOption) (*SampleReader, error) {
	r := &SampleReader{
		db:          db,
		sessionID:   sessionID,
		trialNumber: trialNumber,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SampleReader) init(ctx context.Context) error {
	if r.startUS == nil || r.endUS == nil {
		var minUS, maxUS float64

		stmt, err := r.db.PrepareContext(ctx, selectSampleBoundsSQL)
		if err != nil {
			return fmt.Errorf("preparing bounds statement: %w", err)
		}

		err = stmt.QueryRowContext(ctx, r.sessionID, r.trialNumber).Scan(&minUS, &maxUS)
		_ = stmt.Close()
		if err != nil {
			return fmt.Errorf("querying sample bounds: %w", err)
		}

		if r.startUS == nil {
			r.startUS = &minUS
		}
		if r.endUS == nil {
			r.endUS = &maxUS
		}
	}

	rows, err := r.db.QueryContext(ctx, selectSamplesSQL, r.sessionID, r.trialNumber, r.startUS, r.endUS)
	if err != nil {
		return fmt.Errorf("querying samples: %w", err)
	}

	r.rows = rows
	return nil
}

// Next advances the iterator and returns true if another sample is
// available.
func (r *SampleReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}

	var p SamplePoint
	if err := r.rows.Scan(
		&p.TimestampUS,
		&p.CursorX,
		&p.CursorY,
		&p.CursorVX,
		&p.CursorVY,
		&p.TargetX,
		&p.TargetY,
		&p.ErrorX,
		&p.ErrorY,
	); err != nil {
		r.err = fmt.Errorf("scanning sample: %w", err)
		return false
	}

	r.current = p
	return true
}

// Current returns the sample most recently read by Next.
func (r *SampleReader) Current() SamplePoint {
	return r.current
}

// Error returns any error that occurred during iteration. When Next
// returns false, Error distinguishes end of data from a failure.
func (r *SampleReader) Error() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the database resources held by the reader.
func (r *SampleReader) Close() error {
	return r.rows.Close()
}
