package recorder

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"

	"github.com/skywardavionics/flightcore/internal/flashfs"
)

// RecorderState is the recorder's own state machine (spec.md §4.8),
// separate from the flight FSM.
type RecorderState uint8

const (
	StateOff RecorderState = iota
	StateFillQueue
	StateWriteToFlash
)

// Recorder runs the C8 pipeline: a bounded MPSC queue of Entry, a
// pre-liftoff ring-retention policy, and a single-writer flash serializer.
//
// The serializer runs on a 1-worker pond pool (new wiring; the teacher has
// no worker pool) rather than a bare goroutine, so Close() can wait for the in-flight write to drain via the
// pool's StopAndWait rather than a hand-rolled done channel.
type Recorder struct {
	mu    sync.Mutex
	state RecorderState
	queue []Entry

	capacity          int
	preThrustingLimit int

	fs           *flashfs.DB
	writer       *PageWriter
	syncEvery    int
	pool         *pond.WorkerPool
	errRaise     func()

	flightCounter uint32
}

// Config bundles the recorder's sizing knobs, sourced from the config
// registry (record_queue_size, pre_thrusting_limit,
// flash_sync_every_n_buffers).
type Config struct {
	QueueSize         int
	PreThrustingLimit int
	SyncEveryNBuffers int
}

func New(fs *flashfs.DB, cfg Config, errRaise func()) *Recorder {
	return &Recorder{
		state:             StateOff,
		capacity:          cfg.QueueSize,
		preThrustingLimit: cfg.PreThrustingLimit,
		fs:                fs,
		syncEvery:         cfg.SyncEveryNBuffers,
		pool:              pond.New(1, cfg.QueueSize, pond.MinWorkers(1)),
		errRaise:          errRaise,
	}
}

// Arm transitions OFF->FILL_QUEUE.
func (r *Recorder) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateOff {
		r.state = StateFillQueue
		r.queue = r.queue[:0]
	}
}

// Liftoff transitions FILL_QUEUE->WRITE_TO_FLASH, opening a new flight
// file and flushing the retained pre-liftoff ring into it first.
func (r *Recorder) Liftoff() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateFillQueue {
		return nil
	}
	n, err := r.nextFlightNumber()
	if err != nil {
		return err
	}
	f, err := r.fs.Create(fmt.Sprintf("/flights/flight_%05d", n))
	if err != nil {
		return err
	}
	r.writer = NewPageWriter(f, r.syncEvery)
	r.state = StateWriteToFlash

	backlog := r.queue
	r.queue = nil
	for _, e := range backlog {
		if err := r.writer.Write(e.Encode()); err != nil {
			return err
		}
	}
	return nil
}

// Touchdown transitions WRITE_TO_FLASH->OFF after flushing and closing the
// current flight file (spec.md §4.8's "post-touchdown grace" is the final
// flush performed here before the state drops to OFF).
func (r *Recorder) Touchdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateWriteToFlash {
		return nil
	}
	r.state = StateOff
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	return err
}

// Push enqueues one record. In FILL_QUEUE, occupancy above
// preThrustingLimit evicts the oldest entry on each push (ring retention).
// In WRITE_TO_FLASH, the entry is handed to the single writer worker;
// overflow of the worker pool's task queue is dropped with ERR_LOG_FULL
// raised. In OFF, entries are discarded.
func (r *Recorder) Push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateOff:
		return
	case StateFillQueue:
		r.queue = append(r.queue, e)
		if len(r.queue) > r.preThrustingLimit {
			r.queue = r.queue[len(r.queue)-r.preThrustingLimit:]
		}
	case StateWriteToFlash:
		w := r.writer
		submitted := r.pool.TrySubmit(func() {
			if err := w.Write(e.Encode()); err != nil && r.errRaise != nil {
				r.errRaise()
			}
		})
		if !submitted && r.errRaise != nil {
			r.errRaise()
		}
	}
}

// Close stops the writer pool, waiting for any in-flight write.
func (r *Recorder) Close() {
	r.pool.StopAndWait()
}

// nextFlightNumber reads-increments-persists the monotonic counter backing
// /flight_counter (spec.md §4.8, §6).
func (r *Recorder) nextFlightNumber() (uint32, error) {
	var n uint32
	if blob, ok := r.fs.GetBlob("/flight_counter"); ok && len(blob) == 4 {
		n = binary.LittleEndian.Uint32(blob)
	}
	n++
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, n)
	if err := r.fs.PutBlob("/flight_counter", buf); err != nil {
		return 0, err
	}
	atomic.StoreUint32(&r.flightCounter, n)
	return n, nil
}

// State returns the current recorder state, for the observability layer.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
