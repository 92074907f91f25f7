package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

// Store provides an interface for managing experiment data storage.
// It handles recording sessions, per-trial summaries and raw sample time
// series. All write operations are atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its
	// unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - subjectID: Identifier of the experiment subject
	//   - taskType: Task type label (e.g., "sos", "fitts")
	//   - config: Optional run configuration. Can be string, []byte, or a
	//     JSON-serializable object
	CreateSession(ctx context.Context, subjectID, taskType string, config any) (sessionID int64, err error)

	// Sessions returns all recording sessions, ordered by start time.
	Sessions(ctx context.Context) ([]Session, error)

	// CreateTrial opens a trial record within a session. The record is
	// completed later by FinishTrial.
	CreateTrial(ctx context.Context, sessionID int64, trialNumber uint32) (trialID int64, err error)

	// FinishTrial writes the summary onto the most recently opened trial
	// record with the given number. If no open record exists, a complete
	// one is inserted instead.
	FinishTrial(ctx context.Context, sessionID int64, summary trial.Summary) error

	// BatchInsertSamples stores a batch of raw samples for a trial in a
	// single transaction.
	BatchInsertSamples(ctx context.Context, sessionID int64, trialNumber uint32, samples []wire.Message) error

	// TrialSummaries returns the finished trials of a session in trial
	// order.
	TrialSummaries(ctx context.Context, sessionID int64) ([]TrialRecord, error)

	// ReadSamples creates a SampleReader over one trial's stored time
	// series. The reader must be closed after use.
	ReadSamples(ctx context.Context, sessionID int64, trialNumber uint32, opts ...ReaderOption) (*SampleReader, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
