package storage

import (
	"context"
	"io"
	"log/slog"

	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

const defaultMaxBatchSize = 100

// WithSinkLogger sets the logger for the sink
func WithSinkLogger(logger *slog.Logger) func(s *Sink) {
	return func(s *Sink) {
		s.logger = logger.With(slog.String("component", "storageSink"))
	}
}

// WithMaxBatchSize sets the number of buffered samples written to the
// database in a single transaction.
func WithMaxBatchSize(size int) func(s *Sink) {
	return func(s *Sink) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// Sink adapts a Store to the trial.Sink contract. Samples are buffered
// and flushed a batch at a time, so a slow disk delays the detector at
// most once per batch. Write failures are logged and counted but never
// surface to the detector; the in-memory summary is the detector's
// responsibility, the durable copy is best effort.
type Sink struct {
	store     Store
	sessionID int64

	logger       *slog.Logger
	maxBatchSize int

	trialNumber uint32
	pending     []wire.Message
	writeErrors uint64
}

// NewSink creates a trial sink writing to the given store session.
func NewSink(store Store, sessionID int64, options ...func(s *Sink)) *Sink {
	s := Sink{
		store:        store,
		sessionID:    sessionID,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBatchSize: defaultMaxBatchSize,
	}

	for _, option := range options {
		option(&s)
	}

	s.pending = make([]wire.Message, 0, s.maxBatchSize)
	return &s
}

func (s *Sink) TrialStarted(trialNumber uint32) {
	s.trialNumber = trialNumber
	s.pending = s.pending[:0]

	if _, err := s.store.CreateTrial(context.Background(), s.sessionID, trialNumber); err != nil {
		s.writeErrors++
		s.logger.Error("creating trial record", slog.Any("trial", trialNumber), slog.Any("error", err))
	}
}

func (s *Sink) Sample(m wire.Message) {
	s.pending = append(s.pending, m)
	if len(s.pending) >= s.maxBatchSize {
		s.flush()
	}
}

func (s *Sink) TrialEnded(summary trial.Summary) {
	s.flush()

	if err := s.store.FinishTrial(context.Background(), s.sessionID, summary); err != nil {
		s.writeErrors++
		s.logger.Error("writing trial summary", slog.Any("trial", summary.TrialNumber), slog.Any("error", err))
	}
}

// WriteErrors returns the number of failed database writes.
func (s *Sink) WriteErrors() uint64 {
	return s.writeErrors
}

func (s *Sink) flush() {
	if len(s.pending) == 0 {
		return
	}

	if err := s.store.BatchInsertSamples(context.Background(), s.sessionID, s.trialNumber, s.pending); err != nil {
		s.writeErrors++
		s.logger.Error("writing samples", slog.Any("trial", s.trialNumber), slog.Any("error", err))
	}

	s.pending = s.pending[:0]
}

var _ trial.Sink = (*Sink)(nil)
