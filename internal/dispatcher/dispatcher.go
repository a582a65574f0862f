package dispatcher

import (
	"container/list"
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultBound is the default number of tasks a Dispatcher will hold before
// it starts dropping the oldest queued task.
const DefaultBound = 10

// CancelToken is handed to every task. Long-running tasks must poll it
// instead of sleeping blindly, so a Stop() can be observed promptly.
// Cancellation is cooperative: Stop() never kills a task that's already
// running, it only discards tasks still waiting in the queue and signals
// this token for whichever task is in flight when Stop() is called.
type CancelToken interface {
	// Cancelled reports whether Stop() has been called.
	Cancelled() bool
	// Done returns a channel closed when Stop() is called, for use in a
	// select alongside a long sleep or blocking read.
	Done() <-chan struct{}
}

type cancelToken struct {
	ctx context.Context
}

func (t cancelToken) Cancelled() bool      { return t.ctx.Err() != nil }
func (t cancelToken) Done() <-chan struct{} { return t.ctx.Done() }

// Task is a unit of work submitted to a Dispatcher.
type Task func(CancelToken)

// Dispatcher is a single-consumer, bounded FIFO work queue. Invoke never
// blocks the caller and never runs the task inline; tasks submitted by the
// same producer run in the order they were submitted.
type Dispatcher struct {
	log *logrus.Entry

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List
	bound   int
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropped uint64
}

// New creates a Dispatcher with the given queue bound. A bound <= 0 uses
// DefaultBound.
func New(name string, bound int) *Dispatcher {
	if bound <= 0 {
		bound = DefaultBound
	}
	d := &Dispatcher{
		log:   logrus.WithField("component", "dispatcher").WithField("name", name),
		queue: list.New(),
		bound: bound,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start spawns the consumer goroutine. Safe to call once; subsequent calls
// are no-ops.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.run()
}

// Invoke enqueues task. It never blocks and never runs task inline. If the
// queue is already at its bound, the oldest queued task is dropped (and
// logged) to make room.
func (d *Dispatcher) Invoke(task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.log.Debug("invoke after stop, task discarded")
		return
	}

	if d.queue.Len() >= d.bound {
		oldest := d.queue.Front()
		d.queue.Remove(oldest)
		d.dropped++
		d.log.WithField("bound", d.bound).Warn("task queue full, dropped oldest task")
	}

	d.queue.PushBack(task)
	d.cond.Signal()
}

// Stop cancels all pending (not yet running) tasks, waits for the consumer
// to observe cancellation, and joins. In-flight tasks run to completion;
// Stop only unblocks a task that is actively checking its CancelToken.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.queue.Init() // discard anything still waiting
	if d.cancel != nil {
		d.cancel()
	}
	d.cond.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped returns the number of tasks dropped due to queue overflow.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for d.queue.Len() == 0 && !d.stopped {
			d.cond.Wait()
		}
		if d.stopped && d.queue.Len() == 0 {
			d.mu.Unlock()
			return
		}
		front := d.queue.Front()
		d.queue.Remove(front)
		d.mu.Unlock()

		task := front.Value.(Task)
		d.runTask(task)

		d.mu.Lock()
		stopped := d.stopped
		empty := d.queue.Len() == 0
		d.mu.Unlock()
		if stopped && empty {
			return
		}
	}
}

func (d *Dispatcher) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("task panicked, dispatcher continues")
		}
	}()
	task(cancelToken{ctx: d.ctx})
}
