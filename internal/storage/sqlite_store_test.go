package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "test.sqlite"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateSession(ctx, "s01", "sos", map[string]any{"listenAddr": "127.0.0.1:12345"})
	require.NoError(t, err)
	require.Positive(t, id)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	sess := sessions[0]
	require.Equal(t, id, sess.ID)
	require.Equal(t, "s01", sess.SubjectID)
	require.Equal(t, "sos", sess.TaskType)
	require.NotNil(t, sess.Config)
	require.Contains(t, *sess.Config, "listenAddr")
}

func TestTrialLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, "s02", "fitts", nil)
	require.NoError(t, err)

	_, err = store.CreateTrial(ctx, sessionID, 1)
	require.NoError(t, err)

	samples := []wire.Message{
		{TimestampUS: 0, CursorX: 0.001, State: wire.TaskRunning, TrialNumber: 1},
		{TimestampUS: 16_667, CursorX: 0.002, TargetX: 0.001, State: wire.TaskRunning, TrialNumber: 1},
	}
	require.NoError(t, store.BatchInsertSamples(ctx, sessionID, 1, samples))

	// Open trials are not reported until finished.
	trials, err := store.TrialSummaries(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, trials)

	summary := trial.Summary{
		TrialNumber: 1,
		DurationS:   0.016667,
		RMSEX:       0.001,
		RMSEY:       0,
		RMSETotal:   0.001,
		SampleCount: 2,
		Success:     true,
	}
	require.NoError(t, store.FinishTrial(ctx, sessionID, summary))

	trials, err = store.TrialSummaries(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, trials, 1)

	rec := trials[0]
	require.Equal(t, uint32(1), rec.TrialNumber)
	require.NotNil(t, rec.EndedAt)
	require.InDelta(t, 0.001, rec.RMSETotal, 1e-12)
	require.Equal(t, 2, rec.SampleCount)
	require.True(t, rec.Success)
}

func TestFinishTrialWithoutOpenRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, "s03", "sos", nil)
	require.NoError(t, err)

	// No CreateTrial call: the summary must still be persisted.
	summary := trial.Summary{TrialNumber: 9, SampleCount: 0, Success: false}
	require.NoError(t, store.FinishTrial(ctx, sessionID, summary))

	trials, err := store.TrialSummaries(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	require.Equal(t, uint32(9), trials[0].TrialNumber)
	require.False(t, trials[0].Success)
}

func TestReadSamples(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, "s04", "sos", nil)
	require.NoError(t, err)

	var samples []wire.Message
	for i := 0; i < 10; i++ {
		samples = append(samples, wire.Message{
			TimestampUS: float64(i) * 1000,
			CursorX:     float64(i) * 0.01,
			TargetX:     0.02,
			State:       wire.TaskRunning,
			TrialNumber: 2,
		})
	}
	require.NoError(t, store.BatchInsertSamples(ctx, sessionID, 2, samples))

	reader, err := store.ReadSamples(ctx, sessionID, 2)
	require.NoError(t, err)
	defer reader.Close()

	var got []SamplePoint
	for reader.Next() {
		got = append(got, reader.Current())
	}
	require.NoError(t, reader.Error())
	require.Len(t, got, 10)

	for i, p := range got {
		require.Equal(t, float64(i)*1000, p.TimestampUS, "samples must come back in timestamp order")
		require.InDelta(t, float64(i)*0.01-0.02, p.ErrorX, 1e-12, "stored error_x must match cursor minus target")
	}

	// Bounded read
	reader, err = store.ReadSamples(ctx, sessionID, 2, WithTimestampRangeUS(2000, 5000))
	require.NoError(t, err)
	defer reader.Close()

	var count int
	for reader.Next() {
		count++
	}
	require.NoError(t, reader.Error())
	require.Equal(t, 4, count)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateSession(context.Background(), "s05", "sos", nil)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
