// Package wire implements the fixed 64-byte binary telemetry frame
// exchanged with the experiment core over UDP. The layout is a
// compatibility boundary with an external producer and must not change:
// seven little-endian IEEE-754 doubles (timestamp_us, cursor_x, cursor_y,
// cursor_vx, cursor_vy, target_x, target_y) followed by two little-endian
// uint32 values (task state ordinal, trial number).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FrameSize is the exact length of one telemetry frame in bytes.
// Datagrams carrying extra trailing bytes are accepted; the tail is ignored.
const FrameSize = 64

var (
	// ErrFrameTooShort is returned when fewer than FrameSize bytes are supplied
	ErrFrameTooShort = errors.New("frame too short")

	// ErrInvalidTaskState is returned when the task state ordinal is outside the defined range
	ErrInvalidTaskState = errors.New("invalid task state")
)

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskPaused
	TaskCompleted
	TaskFailed

	numTaskStates
)

// TaskState is the task phase reported by the producer.
type TaskState uint32

// Valid reports whether the state is one of the five defined ordinals.
func (s TaskState) Valid() bool {
	return s < numTaskStates
}

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskRunning:
		return "running"
	case TaskPaused:
		return "paused"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Message is one decoded telemetry frame. Positions are in metres,
// velocities in metres per second, the timestamp in microseconds since
// the producer's experiment clock epoch.
type Message struct {
	TimestampUS float64
	CursorX     float64
	CursorY     float64
	CursorVX    float64
	CursorVY    float64
	TargetX     float64
	TargetY     float64
	State       TaskState
	TrialNumber uint32
}

// ErrorX returns the signed cursor-to-target error on the X axis in metres.
func (m Message) ErrorX() float64 {
	return m.CursorX - m.TargetX
}

// ErrorY returns the signed cursor-to-target error on the Y axis in metres.
func (m Message) ErrorY() float64 {
	return m.CursorY - m.TargetY
}

// Decode parses a telemetry frame from p. At least FrameSize bytes must be
// supplied; anything beyond the first FrameSize bytes is ignored.
func Decode(p []byte) (Message, error) {
	if len(p) < FrameSize {
		return Message{}, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameTooShort, len(p), FrameSize)
	}

	state := TaskState(binary.LittleEndian.Uint32(p[56:60]))
	if !state.Valid() {
		return Message{}, fmt.Errorf("%w: ordinal %d", ErrInvalidTaskState, uint32(state))
	}

	return Message{
		TimestampUS: math.Float64frombits(binary.LittleEndian.Uint64(p[0:8])),
		CursorX:     math.Float64frombits(binary.LittleEndian.Uint64(p[8:16])),
		CursorY:     math.Float64frombits(binary.LittleEndian.Uint64(p[16:24])),
		CursorVX:    math.Float64frombits(binary.LittleEndian.Uint64(p[24:32])),
		CursorVY:    math.Float64frombits(binary.LittleEndian.Uint64(p[32:40])),
		TargetX:     math.Float64frombits(binary.LittleEndian.Uint64(p[40:48])),
		TargetY:     math.Float64frombits(binary.LittleEndian.Uint64(p[48:56])),
		State:       state,
		TrialNumber: binary.LittleEndian.Uint32(p[60:64]),
	}, nil
}

// Encode serialises the message into a new FrameSize-byte frame.
// Decode(m.Encode()) == m for every message with a valid task state.
func (m Message) Encode() []byte {
	p := make([]byte, FrameSize)
	binary.LittleEndian.PutUint64(p[0:8], math.Float64bits(m.TimestampUS))
	binary.LittleEndian.PutUint64(p[8:16], math.Float64bits(m.CursorX))
	binary.LittleEndian.PutUint64(p[16:24], math.Float64bits(m.CursorY))
	binary.LittleEndian.PutUint64(p[24:32], math.Float64bits(m.CursorVX))
	binary.LittleEndian.PutUint64(p[32:40], math.Float64bits(m.CursorVY))
	binary.LittleEndian.PutUint64(p[40:48], math.Float64bits(m.TargetX))
	binary.LittleEndian.PutUint64(p[48:56], math.Float64bits(m.TargetY))
	binary.LittleEndian.PutUint32(p[56:60], uint32(m.State))
	binary.LittleEndian.PutUint32(p[60:64], m.TrialNumber)
	return p
}
