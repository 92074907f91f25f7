// Package receiver turns arbitrarily-timed telemetry datagrams into a
// queryable latest-known state plus a bounded backlog, without ever
// blocking its consumers.
package receiver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uhtp-tools/recorder/internal/wire"
)

const (
	// DefaultBacklogSize is the default capacity of the message backlog
	DefaultBacklogSize = 100

	// DefaultReadTimeout bounds each blocking read so the loop can observe
	// cancellation without spinning
	DefaultReadTimeout = 100 * time.Millisecond

	// readBufferSize leaves margin over wire.FrameSize for producers that
	// pad their datagrams
	readBufferSize = 2048
)

// Stats is a snapshot of the receiver packet counters.
type Stats struct {
	Received     uint64 // successfully decoded frames
	DecodeErrors uint64 // frames dropped due to decode failure
}

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("component", "receiver"))
	}
}

// WithBacklogSize sets the backlog capacity. When the backlog is full the
// oldest message is evicted.
func WithBacklogSize(size int) func(r *Receiver) {
	return func(r *Receiver) {
		r.backlogSize = size
	}
}

// WithReadTimeout sets the per-read deadline of the receive loop
func WithReadTimeout(d time.Duration) func(r *Receiver) {
	return func(r *Receiver) {
		r.readTimeout = d
	}
}

// Receiver owns one UDP socket and a background read loop that decodes
// incoming telemetry frames. Latest, Drain and Stats are safe to call
// concurrently with the read loop.
type Receiver struct {
	addr        string
	backlogSize int
	readTimeout time.Duration
	logger      *slog.Logger

	conn *net.UDPConn

	mu        sync.Mutex
	latest    wire.Message
	hasLatest bool
	backlog   []wire.Message

	received     atomic.Uint64
	decodeErrors atomic.Uint64

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// New creates a Receiver bound to addr (host:port) once Start is called.
// The default logger discards all output.
func New(addr string, options ...func(r *Receiver)) *Receiver {
	r := Receiver{
		addr:        addr,
		backlogSize: DefaultBacklogSize,
		readTimeout: DefaultReadTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Start binds the socket and launches the read loop. A bind failure is
// fatal and returned to the caller; there is no retry.
func (r *Receiver) Start(ctx context.Context) error {
	if r.running.Load() {
		return fmt.Errorf("receiver is already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return fmt.Errorf("resolving listen address %q: %w", r.addr, err)
	}

	// Address reuse lets a restarted process rebind without waiting out
	// the previous socket's lingering state.
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp", udpAddr.String())
	if err != nil {
		return fmt.Errorf("binding %q: %w", r.addr, err)
	}
	r.conn = pc.(*net.UDPConn)

	ctx, r.cancel = context.WithCancel(ctx)
	r.running.Store(true)

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("listening", slog.String("addr", r.conn.LocalAddr().String()))
	return nil
}

func (r *Receiver) run(ctx context.Context) {
	defer r.wg.Done()

	buffer := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
			r.logger.Warn("setting read deadline", slog.Any("error", err))
		}

		n, _, err := r.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue // no data available
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("read error", slog.Any("error", err))
			continue
		}

		msg, err := wire.Decode(buffer[:n])
		if err != nil {
			r.decodeErrors.Add(1)
			r.logger.Warn("dropping frame", slog.Any("error", err), slog.Int("bytes", n))
			continue
		}

		r.mu.Lock()
		r.latest = msg
		r.hasLatest = true
		if len(r.backlog) >= r.backlogSize {
			r.backlog = r.backlog[1:]
		}
		r.backlog = append(r.backlog, msg)
		r.mu.Unlock()

		r.received.Add(1)
	}
}

// Latest returns the most recently decoded message. The second return
// value is false until the first frame arrives.
func (r *Receiver) Latest() (wire.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.hasLatest
}

// Drain returns the backlog in arrival order and clears it.
func (r *Receiver) Drain() []wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.backlog) == 0 {
		return nil
	}

	out := r.backlog
	r.backlog = make([]wire.Message, 0, r.backlogSize)
	return out
}

// Addr returns the bound socket address. It is nil before Start.
func (r *Receiver) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Stats returns a snapshot of the packet counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}

// IsRunning returns true if the read loop is active
func (r *Receiver) IsRunning() bool {
	return r.running.Load()
}

// Stop signals the read loop to exit, waits for it, and only then closes
// the socket. Closing first would race the loop into observing a closed
// handle. Stop is safe to call more than once.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.running.Store(false)

		if r.conn != nil {
			if err := r.conn.Close(); err != nil {
				r.logger.Warn("closing socket", slog.Any("error", err))
			}
		}
	})
}
