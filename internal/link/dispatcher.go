package link

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lanlink/internal/logging"
	"github.com/muurk/lanlink/internal/metrics"
)

// DefaultCommandInterval is the minimum spacing between two writes.
const DefaultCommandInterval = 30 * time.Millisecond

// Dispatcher is the single writer in front of a connection. Commands are
// written in FIFO order, one at a time, with at least Interval between the end
// of one write and the start of the next.
//
// Pending commands and the in-flight flag are only touched under mu, so the
// pop-and-mark-busy transition is atomic with respect to Enqueue and Stop.
type Dispatcher struct {
	w        io.Writer
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Collectors

	mu       sync.Mutex
	pending  [][]byte
	inFlight bool
	running  bool
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	changed  chan struct{} // closed and replaced on every state change
}

// NewDispatcher creates a stopped dispatcher writing to w.
func NewDispatcher(w io.Writer, interval time.Duration, logger *zap.Logger, m *metrics.Collectors) *Dispatcher {
	if interval <= 0 {
		interval = DefaultCommandInterval
	}
	return &Dispatcher{
		w:        w,
		interval: interval,
		logger:   logging.Or(logger).Named("dispatch"),
		metrics:  m,
		changed:  make(chan struct{}),
	}
}

// Interval returns the configured write spacing.
func (d *Dispatcher) Interval() time.Duration {
	return d.interval
}

// Start launches the write loop. Starting a running dispatcher is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.wake = make(chan struct{}, 1)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	if len(d.pending) > 0 {
		d.wake <- struct{}{}
	}
	go d.run(d.wake, d.stop, d.done)
}

// Stop halts the write loop, discards pending commands and clears the
// in-flight flag. A write blocked in the underlying writer keeps Stop waiting
// until it returns, so owners close the transport before calling Stop.
// Stopping a stopped dispatcher is a no-op.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	done := d.done
	d.mu.Unlock()

	<-done

	d.mu.Lock()
	discarded := len(d.pending)
	d.pending = nil
	d.inFlight = false
	d.notifyLocked()
	d.mu.Unlock()

	d.metrics.QueueCleared(discarded)
	if discarded > 0 {
		d.logger.Info("Discarded pending commands", zap.Int("count", discarded))
	}
}

// Enqueue appends cmd to the queue. It returns false without queuing when the
// dispatcher is not running.
func (d *Dispatcher) Enqueue(cmd []byte) bool {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		d.metrics.CommandRejected()
		return false
	}
	d.pending = append(d.pending, cmd)
	depth := len(d.pending)
	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.notifyLocked()
	d.mu.Unlock()

	d.metrics.CommandEnqueued(depth)
	return true
}

// Len returns the number of commands waiting to be written.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Busy reports whether a write is in progress.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Running reports whether the write loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Flush blocks until the queue is empty and no write is in flight, the
// dispatcher stops, or ctx ends.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		d.mu.Lock()
		if !d.running {
			d.mu.Unlock()
			return ErrNotConnected
		}
		if len(d.pending) == 0 && !d.inFlight {
			d.mu.Unlock()
			return nil
		}
		changed := d.changed
		d.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) run(wake <-chan struct{}, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var lastWrite time.Time
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-wake:
		}

		for {
			if !lastWrite.IsZero() {
				if wait := d.interval - time.Since(lastWrite); wait > 0 {
					timer.Reset(wait)
					select {
					case <-stop:
						return
					case <-timer.C:
					}
				}
			}

			cmd, ok := d.next()
			if !ok {
				break
			}

			_, err := d.w.Write(cmd)
			lastWrite = time.Now()
			d.finish(cmd, err)
		}
	}
}

// next pops the head command and marks the dispatcher busy.
func (d *Dispatcher) next() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.inFlight || len(d.pending) == 0 {
		return nil, false
	}
	cmd := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	d.inFlight = true
	d.notifyLocked()
	return cmd, true
}

func (d *Dispatcher) finish(cmd []byte, err error) {
	d.mu.Lock()
	d.inFlight = false
	depth := len(d.pending)
	d.notifyLocked()
	d.mu.Unlock()

	d.metrics.CommandWritten(depth, err)
	if err != nil {
		d.logger.Warn("Command write failed, dropping",
			zap.Int("length", len(cmd)),
			zap.Error(err),
		)
		return
	}
	logging.LogRawBytes(d.logger, "Command written", cmd)
}

func (d *Dispatcher) notifyLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}
