package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uhtp-tools/recorder/internal/receiver"
	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

type captureSink struct {
	started []uint32
	samples int
	ended   []trial.Summary
}

func (s *captureSink) TrialStarted(trialNumber uint32) { s.started = append(s.started, trialNumber) }
func (s *captureSink) Sample(m wire.Message)           { s.samples++ }
func (s *captureSink) TrialEnded(sum trial.Summary)    { s.ended = append(s.ended, sum) }

func TestOrchestratorEndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	recv := receiver.New("127.0.0.1:0")
	detector := trial.New()
	sink := &captureSink{}
	detector.Register(sink)

	orchestrator := NewOrchestrator(recv, detector, logger, WithPollRate(200))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- orchestrator.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return recv.Addr() != nil
	}, 2*time.Second, 5*time.Millisecond, "receiver did not start")

	conn, err := net.Dial("udp", recv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Trial 1 runs to completion, trial 2 is abandoned mid-flight.
	frames := []wire.Message{
		{TimestampUS: 0, State: wire.TaskRunning, TrialNumber: 1},
		{TimestampUS: 16_667, State: wire.TaskRunning, TrialNumber: 1},
		{TimestampUS: 33_334, State: wire.TaskCompleted, TrialNumber: 1},
		{TimestampUS: 50_000, State: wire.TaskRunning, TrialNumber: 2},
	}
	for _, m := range frames {
		_, err = conn.Write(m.Encode())
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return recv.Stats().Received == uint64(len(frames))
	}, 2*time.Second, 5*time.Millisecond, "frames did not arrive")

	// Shut down with trial 2 still open; the final drain inside Run hands
	// anything not yet polled to the detector before the forced close.
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []uint32{1, 2}, sink.started)
	require.Equal(t, 3, sink.samples)
	require.Len(t, sink.ended, 2)

	require.True(t, sink.ended[0].Success, "completed trial closes as successful")
	require.Equal(t, 2, sink.ended[0].SampleCount)

	require.False(t, sink.ended[1].Success, "abandoned trial closes as failed")
	require.Equal(t, uint32(2), sink.ended[1].TrialNumber)
	require.Equal(t, 1, sink.ended[1].SampleCount)
}

func TestOrchestratorBindFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orchestrator := NewOrchestrator(receiver.New("256.0.0.1:0"), trial.New(), logger)
	if err := orchestrator.Run(context.Background()); err == nil {
		t.Fatal("Run should surface a bind failure")
	}
}
