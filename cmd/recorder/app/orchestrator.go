package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/uhtp-tools/recorder/internal/receiver"
	"github.com/uhtp-tools/recorder/internal/trial"
)

// WithPollRate sets the rate, in Hz, at which the consumer loop drains
// the receiver backlog into the detector.
func WithPollRate(rateHz int) func(o *Orchestrator) {
	return func(o *Orchestrator) {
		if rateHz > 0 {
			o.pollInterval = time.Second / time.Duration(rateHz)
		}
	}
}

// Orchestrator drives the single consumer loop: at a fixed rate it drains
// the receiver backlog in arrival order into the trial detector. The
// detector is exclusively owned by this loop.
type Orchestrator struct {
	receiver *receiver.Receiver
	detector *trial.Detector
	logger   *slog.Logger

	pollInterval time.Duration
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(recv *receiver.Receiver, detector *trial.Detector, logger *slog.Logger, options ...func(o *Orchestrator)) *Orchestrator {
	o := Orchestrator{
		receiver:     recv,
		detector:     detector,
		logger:       logger,
		pollInterval: time.Second / defaultPollRateHz,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run starts the receiver and consumes until the context is cancelled.
// On shutdown, any trial still active is force-closed as failed so its
// summary reaches the sinks.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.receiver.Start(ctx); err != nil {
		return fmt.Errorf("starting receiver: %w", err)
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil

		case <-ticker.C:
			for _, m := range o.receiver.Drain() {
				o.detector.Process(m)
			}
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.logger.Info("shutting down")

	// Stop the read loop first so the final drain observes everything that
	// arrived, then close whatever trial is still open.
	o.receiver.Stop()
	for _, m := range o.receiver.Drain() {
		o.detector.Process(m)
	}
	o.detector.Finish()

	stats := o.receiver.Stats()
	o.logger.Info("receiver stopped",
		slog.String("received", humanize.Comma(int64(stats.Received))),
		slog.String("decodeErrors", humanize.Comma(int64(stats.DecodeErrors))),
	)
}
