// Package storage persists recording sessions, trial summaries and raw
// sample time series in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new store for the given database path. The
// connections are opened lazily on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, subjectID, taskType string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, subjectID, taskType, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.SubjectID, &sess.TaskType, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, sess)
	}

	err = rows.Err()
	return
}

func (s *SqliteStore) CreateTrial(ctx context.Context, sessionID int64, trialNumber uint32) (trialID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertTrialSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, sessionID, trialNumber)
	if err != nil {
		err = fmt.Errorf("inserting trial: %w", err)
		return
	}

	trialID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting trial ID: %w", err)
	}
	return
}

func (s *SqliteStore) FinishTrial(ctx context.Context, sessionID int64, summary trial.Summary) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, finishTrialSQL,
		summary.DurationS,
		summary.RMSEX,
		summary.RMSEY,
		summary.RMSETotal,
		summary.SampleCount,
		summary.Success,
		sessionID,
		summary.TrialNumber,
	)
	if err != nil {
		return fmt.Errorf("finishing trial: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// No open record to complete; store the summary as a standalone row so
	// it is never lost.
	if _, err = db.ExecContext(ctx, insertFinishedTrialSQL,
		sessionID,
		summary.TrialNumber,
		summary.DurationS,
		summary.RMSEX,
		summary.RMSEY,
		summary.RMSETotal,
		summary.SampleCount,
		summary.Success,
	); err != nil {
		return fmt.Errorf("inserting finished trial: %w", err)
	}
	return nil
}

func (s *SqliteStore) BatchInsertSamples(ctx context.Context, sessionID int64, trialNumber uint32, samples []wire.Message) (err error) {
	if len(samples) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]interface{}, 0, len(samples)*11)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertSamplesSQL)

	for i, m := range samples {
		values = append(values,
			sessionID,
			trialNumber,
			m.TimestampUS,
			m.CursorX,
			m.CursorY,
			m.CursorVX,
			m.CursorVY,
			m.TargetX,
			m.TargetY,
			m.ErrorX(),
			m.ErrorY(),
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting samples: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) TrialSummaries(ctx context.Context, sessionID int64) (trials []TrialRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTrialsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying trials: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var rec TrialRecord
		var endedAt sql.NullTime
		var duration, rmseX, rmseY, rmseTotal sql.NullFloat64
		var sampleCount sql.NullInt64
		var success sql.NullBool

		if err = rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.TrialNumber,
			&rec.StartedAt,
			&endedAt,
			&duration,
			&rmseX,
			&rmseY,
			&rmseTotal,
			&sampleCount,
			&success,
		); err != nil {
			err = fmt.Errorf("scanning trial: %w", err)
			return
		}

		if endedAt.Valid {
			t := endedAt.Time
			rec.EndedAt = &t
		}
		rec.DurationS = duration.Float64
		rec.RMSEX = rmseX.Float64
		rec.RMSEY = rmseY.Float64
		rec.RMSETotal = rmseTotal.Float64
		rec.SampleCount = int(sampleCount.Int64)
		rec.Success = success.Bool

		trials = append(trials, rec)
	}

	err = rows.Err()
	return
}

func (s *SqliteStore) ReadSamples(ctx context.Context, sessionID int64, trialNumber uint32, opts ...ReaderOption) (*SampleReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSampleReader(ctx, db, sessionID, trialNumber, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

var _ Store = (*SqliteStore)(nil)

// DatabaseFileName builds the canonical session database file name for a
// recording started at the given time.
func DatabaseFileName(t time.Time) string {
	return fmt.Sprintf("uhtp_session_%s.sqlite", t.UTC().Format("20060102_150405"))
}
