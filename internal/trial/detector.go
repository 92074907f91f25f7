// Package trial reconstructs discrete trial boundaries from the otherwise
// stateless telemetry stream and produces per-trial quality summaries.
package trial

import (
	"io"
	"log/slog"

	"github.com/uhtp-tools/recorder/internal/wire"
)

// WithLogger sets the logger for the detector
func WithLogger(logger *slog.Logger) func(d *Detector) {
	return func(d *Detector) {
		d.logger = logger.With(slog.String("component", "detector"))
	}
}

// Detector is the trial state machine. It is either idle or tracking
// exactly one active trial. Process applies the transition rules below,
// in order, once per incoming message:
//
//  1. Running: close any active trial whose number differs from the
//     incoming one (as successful), open a trial if none is active,
//     then append the sample.
//  2. Completed while active: close the trial as successful.
//  3. Failed while active: close the trial as failed.
//  4. Paused while active: keep the trial open, append nothing.
//  5. Anything else: no-op.
//
// A Detector is exclusively owned by a single consumer loop and performs
// no internal locking.
type Detector struct {
	logger *slog.Logger
	sinks  []Sink

	acc         Accumulator
	active      bool
	trialNumber uint32
}

// New creates a Detector with a discard logger.
func New(options ...func(d *Detector)) *Detector {
	d := Detector{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Register adds a sink to be notified of trial lifecycle events.
func (d *Detector) Register(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Active returns the number of the currently accumulating trial, if any.
func (d *Detector) Active() (uint32, bool) {
	return d.trialNumber, d.active
}

// SampleCount returns the number of samples accumulated for the active
// trial. It is zero when the detector is idle.
func (d *Detector) SampleCount() int {
	if !d.active {
		return 0
	}
	return d.acc.Len()
}

// Process applies one message to the state machine.
func (d *Detector) Process(m wire.Message) {
	switch m.State {
	case wire.TaskRunning:
		if d.active && d.trialNumber != m.TrialNumber {
			// The producer moved on to a new trial without sending an
			// explicit end. A running-to-running boundary is recorded as a
			// successful close of the superseded trial.
			d.close(true)
		}
		if !d.active {
			d.open(m.TrialNumber)
		}

		d.acc.Append(m)
		for _, s := range d.sinks {
			s.Sample(m)
		}

	case wire.TaskCompleted:
		if d.active {
			d.close(true)
		}

	case wire.TaskFailed:
		if d.active {
			d.close(false)
		}

	case wire.TaskPaused, wire.TaskIdle:
		// Paused suspends recording without ending the trial.
	}
}

// Finish force-closes any active trial as failed. It is called on
// shutdown so an abandoned trial still produces a summary for the sinks.
func (d *Detector) Finish() {
	if !d.active {
		return
	}

	d.logger.Warn("closing abandoned trial", slog.Any("trial", d.trialNumber))
	d.close(false)
}

func (d *Detector) open(trialNumber uint32) {
	d.active = true
	d.trialNumber = trialNumber
	d.acc.Reset()

	d.logger.Info("trial started", slog.Any("trial", trialNumber))

	for _, s := range d.sinks {
		s.TrialStarted(trialNumber)
	}
}

func (d *Detector) close(success bool) {
	summary := d.acc.summarize(d.trialNumber, success)

	d.logger.Info("trial ended",
		slog.Any("trial", summary.TrialNumber),
		slog.Float64("durationS", summary.DurationS),
		slog.Float64("rmseMM", summary.RMSETotal*1000),
		slog.Int("samples", summary.SampleCount),
		slog.Bool("success", summary.Success),
	)

	for _, s := range d.sinks {
		s.TrialEnded(summary)
	}

	d.acc.Reset()
	d.active = false
}
