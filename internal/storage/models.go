package storage

import (
	"time"
)

// Session represents one recording run of the experiment viewer.
type Session struct {
	ID        int64
	StartTime time.Time
	SubjectID string
	TaskType  string
	Config    *string // optional run configuration in JSON format
}

// TrialRecord is a stored trial with its summary. EndedAt is nil for a
// trial that was opened but never finished (e.g., the process was killed
// before the summary write).
type TrialRecord struct {
	ID          int64
	SessionID   int64
	TrialNumber uint32
	StartedAt   time.Time
	EndedAt     *time.Time
	DurationS   float64
	RMSEX       float64
	RMSEY       float64
	RMSETotal   float64
	SampleCount int
	Success     bool
}

// SamplePoint is one stored time-series sample of a trial.
type SamplePoint struct {
	TimestampUS float64
	CursorX     float64
	CursorY     float64
	CursorVX    float64
	CursorVY    float64
	TargetX     float64
	TargetY     float64
	ErrorX      float64
	ErrorY      float64
}
