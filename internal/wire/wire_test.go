package wire

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		{},
		{
			TimestampUS: 1_234_567.89,
			CursorX:     0.032,
			CursorY:     -0.017,
			CursorVX:    0.42,
			CursorVY:    -0.11,
			TargetX:     0.035,
			TargetY:     -0.020,
			State:       TaskRunning,
			TrialNumber: 7,
		},
		{
			TimestampUS: 9e12,
			CursorX:     -0.3,
			TargetY:     0.3,
			State:       TaskFailed,
			TrialNumber: 4_294_967_295,
		},
	}

	for _, want := range messages {
		p := want.Encode()
		if len(p) != FrameSize {
			t.Fatalf("Encode produced %d bytes, want %d", len(p), FrameSize)
		}

		got, err := Decode(p)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 32, FrameSize - 1} {
		if _, err := Decode(make([]byte, n)); !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("Decode of %d bytes: got %v, want ErrFrameTooShort", n, err)
		}
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	want := Message{TimestampUS: 42, State: TaskPaused, TrialNumber: 3}

	p := append(want.Encode(), 0xde, 0xad, 0xbe, 0xef)
	got, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeInvalidTaskState(t *testing.T) {
	for _, ordinal := range []uint32{5, 6, 100, 4_294_967_295} {
		p := Message{}.Encode()
		binary.LittleEndian.PutUint32(p[56:60], ordinal)

		if _, err := Decode(p); !errors.Is(err, ErrInvalidTaskState) {
			t.Errorf("ordinal %d: got %v, want ErrInvalidTaskState", ordinal, err)
		}
	}
}

func TestWireLayout(t *testing.T) {
	m := Message{
		TimestampUS: 1,
		CursorX:     2,
		CursorY:     3,
		CursorVX:    4,
		CursorVY:    5,
		TargetX:     6,
		TargetY:     7,
		State:       TaskCompleted,
		TrialNumber: 9,
	}
	p := m.Encode()

	// Field offsets are a wire contract with the producer process.
	doubles := []float64{1, 2, 3, 4, 5, 6, 7}
	for i, want := range doubles {
		bits := binary.LittleEndian.Uint64(p[i*8 : i*8+8])
		if bits != math.Float64bits(want) {
			t.Errorf("double %d: got bits %x, want %x", i, bits, math.Float64bits(want))
		}
	}
	if got := binary.LittleEndian.Uint32(p[56:60]); got != uint32(TaskCompleted) {
		t.Errorf("task state ordinal: got %d, want %d", got, uint32(TaskCompleted))
	}
	if got := binary.LittleEndian.Uint32(p[60:64]); got != 9 {
		t.Errorf("trial number: got %d, want 9", got)
	}
}

func TestTaskStateString(t *testing.T) {
	cases := map[TaskState]string{
		TaskIdle:      "idle",
		TaskRunning:   "running",
		TaskPaused:    "paused",
		TaskCompleted: "completed",
		TaskFailed:    "failed",
		TaskState(17): "unknown(17)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("TaskState(%d).String() = %q, want %q", uint32(state), got, want)
		}
	}
}
