package trial

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/uhtp-tools/recorder/internal/wire"
)

// Accumulator buffers the time-aligned sample series of one active trial.
// It is owned exclusively by the Detector and reset, not reallocated,
// between trials.
type Accumulator struct {
	Timestamps []float64
	CursorX    []float64
	CursorY    []float64
	CursorVX   []float64
	CursorVY   []float64
	TargetX    []float64
	TargetY    []float64
	ErrorX     []float64
	ErrorY     []float64
}

// Append records one message. Cursor-to-target errors are derived at
// append time.
func (a *Accumulator) Append(m wire.Message) {
	a.Timestamps = append(a.Timestamps, m.TimestampUS)
	a.CursorX = append(a.CursorX, m.CursorX)
	a.CursorY = append(a.CursorY, m.CursorY)
	a.CursorVX = append(a.CursorVX, m.CursorVX)
	a.CursorVY = append(a.CursorVY, m.CursorVY)
	a.TargetX = append(a.TargetX, m.TargetX)
	a.TargetY = append(a.TargetY, m.TargetY)
	a.ErrorX = append(a.ErrorX, m.ErrorX())
	a.ErrorY = append(a.ErrorY, m.ErrorY())
}

// Reset clears all series keeping the allocated capacity.
func (a *Accumulator) Reset() {
	a.Timestamps = a.Timestamps[:0]
	a.CursorX = a.CursorX[:0]
	a.CursorY = a.CursorY[:0]
	a.CursorVX = a.CursorVX[:0]
	a.CursorVY = a.CursorVY[:0]
	a.TargetX = a.TargetX[:0]
	a.TargetY = a.TargetY[:0]
	a.ErrorX = a.ErrorX[:0]
	a.ErrorY = a.ErrorY[:0]
}

// Len returns the number of accumulated samples.
func (a *Accumulator) Len() int {
	return len(a.Timestamps)
}

// summarize computes the trial summary over the accumulated samples.
// A trial closed before any sample was appended yields a zero summary.
func (a *Accumulator) summarize(trialNumber uint32, success bool) Summary {
	s := Summary{
		TrialNumber: trialNumber,
		SampleCount: a.Len(),
		Success:     success,
	}
	if s.SampleCount == 0 {
		return s
	}

	squaredX := make([]float64, s.SampleCount)
	squaredY := make([]float64, s.SampleCount)
	squaredTotal := make([]float64, s.SampleCount)
	for i := range a.ErrorX {
		squaredX[i] = a.ErrorX[i] * a.ErrorX[i]
		squaredY[i] = a.ErrorY[i] * a.ErrorY[i]
		squaredTotal[i] = squaredX[i] + squaredY[i]
	}

	s.RMSEX = math.Sqrt(stat.Mean(squaredX, nil))
	s.RMSEY = math.Sqrt(stat.Mean(squaredY, nil))
	s.RMSETotal = math.Sqrt(stat.Mean(squaredTotal, nil))
	s.DurationS = (a.Timestamps[s.SampleCount-1] - a.Timestamps[0]) / 1e6
	return s
}

// Summary is the per-trial quality record produced when a trial closes.
// It is immutable once created.
type Summary struct {
	TrialNumber uint32
	DurationS   float64
	RMSEX       float64 // metres
	RMSEY       float64 // metres
	RMSETotal   float64 // metres
	SampleCount int
	Success     bool
}
