package receiver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uhtp-tools/recorder/internal/wire"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func startReceiver(t *testing.T, options ...func(r *Receiver)) (*Receiver, *net.UDPConn) {
	t.Helper()

	r := New("127.0.0.1:0", options...)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	conn, err := net.Dial("udp", r.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return r, conn.(*net.UDPConn)
}

func sendAndWait(t *testing.T, r *Receiver, conn *net.UDPConn, m wire.Message) {
	t.Helper()

	want := r.Stats().Received + 1
	_, err := conn.Write(m.Encode())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r.Stats().Received >= want
	}, waitFor, tick, "frame was not received")
}

func TestReceiverLatest(t *testing.T) {
	r, conn := startReceiver(t)

	if _, ok := r.Latest(); ok {
		t.Fatal("Latest should report no message before any frame arrives")
	}

	for i := uint32(1); i <= 3; i++ {
		sendAndWait(t, r, conn, wire.Message{TimestampUS: float64(i), State: wire.TaskRunning, TrialNumber: i})
	}

	got, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, uint32(3), got.TrialNumber)
	require.Equal(t, uint64(3), r.Stats().Received)
}

func TestReceiverCountsDecodeErrors(t *testing.T) {
	r, conn := startReceiver(t)

	bad := [][]byte{
		make([]byte, 10), // too short
		func() []byte {   // undefined task state ordinal
			p := wire.Message{}.Encode()
			p[56] = 0xff
			return p
		}(),
	}
	for _, p := range bad {
		_, err := conn.Write(p)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return r.Stats().DecodeErrors == uint64(len(bad))
	}, waitFor, tick, "decode errors were not counted")

	// Malformed frames must not disturb the good path.
	sendAndWait(t, r, conn, wire.Message{State: wire.TaskRunning, TrialNumber: 1})

	stats := r.Stats()
	require.Equal(t, uint64(1), stats.Received)
	require.Equal(t, uint64(len(bad)), stats.DecodeErrors)

	if _, ok := r.Latest(); !ok {
		t.Error("Latest should return the successfully decoded frame")
	}
}

func TestReceiverBacklogEviction(t *testing.T) {
	const capacity = 4

	r, conn := startReceiver(t, WithBacklogSize(capacity))

	for i := uint32(1); i <= 6; i++ {
		sendAndWait(t, r, conn, wire.Message{State: wire.TaskRunning, TrialNumber: i})
	}

	got := r.Drain()
	require.Len(t, got, capacity)
	for i, m := range got {
		require.Equal(t, uint32(3+i), m.TrialNumber, "backlog should hold the most recent frames in arrival order")
	}

	require.Empty(t, r.Drain(), "Drain must clear the backlog")

	latest, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, uint32(6), latest.TrialNumber, "Latest survives a drain")
}

func TestReceiverStop(t *testing.T) {
	r, _ := startReceiver(t)

	require.True(t, r.IsRunning())
	r.Stop()
	require.False(t, r.IsRunning())

	r.Stop() // second call is a no-op
}

func TestReceiverBindFailure(t *testing.T) {
	first := New("127.0.0.1:0")
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop()

	if err := New("256.0.0.1:0").Start(context.Background()); err == nil {
		t.Fatal("Start should fail for an unusable listen address")
	}
}
