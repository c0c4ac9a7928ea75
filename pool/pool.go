// Package pool provides a fixed-size worker pool with a FIFO task queue.
// Tasks are submitted either fire-and-forget (Execute) or with a future for
// their result (Submit / InvokeAll). Workers exit via poison pills injected
// at shutdown; a graceful Shutdown drains the queue first, while ShutdownNow
// discards queued tasks that have not started.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/baselib/future"
)

var (
	// ErrShutdown is the failure reason of futures returned by Submit
	// after the pool has been shut down.
	ErrShutdown = errors.New("thread pool is shut down")

	// ErrInvalidSize is returned by New when the requested pool size is
	// not positive.
	ErrInvalidSize = errors.New("pool size must be > 0")

	// ErrNilTask is the failure reason of futures produced by InvokeAll
	// for nil task slots.
	ErrNilTask = errors.New("task must not be nil")
)

// task is a single queue entry. A poison task instructs exactly one worker
// to exit its loop.
type task struct {
	// id identifies the task in log output.
	id string

	// run executes the task body. It is nil for poison tasks.
	run func()

	// discard is invoked instead of run when ShutdownNow drops the task
	// from the queue. It may be nil.
	discard func()

	// poison marks a worker-exit sentinel.
	poison bool
}

// Pool is a fixed-size worker pool. All methods are safe for concurrent
// use. The pool owns a single lock; task bodies and future completion
// always run outside of it.
type Pool struct {
	// mu guards every mutable field below.
	mu sync.Mutex

	// notEmpty signals workers that the queue has entries.
	notEmpty *sync.Cond

	// queue is the FIFO of pending tasks. Workers pop from the front.
	queue []task

	// size is the fixed number of workers.
	size int

	// activeCount is the number of workers currently running a task
	// body.
	activeCount int

	// aliveWorkers is the number of worker goroutines that have not yet
	// exited. It only decreases once shutdown begins.
	aliveWorkers int

	// shutdown is set once Shutdown or ShutdownNow has been called.
	shutdown bool

	// workerIDs holds the goroutine ids of the worker loops, letting
	// Shutdown detect a self-join.
	workerIDs map[uint64]struct{}

	// termination is closed when the last worker exits.
	termination chan struct{}
}

// New creates a pool with the given number of workers, all started
// immediately. It returns ErrInvalidSize if size is not positive.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	p := &Pool{
		size:         size,
		aliveWorkers: size,
		workerIDs:    make(map[uint64]struct{}),
		termination:  make(chan struct{}),
	}
	p.notEmpty = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		go p.worker(i)
	}

	log.DebugS(context.Background(), "Worker pool started",
		"pool_size", size)

	return p, nil
}

// WithDefault creates a pool sized to the host's CPU count, with a minimum
// of one worker.
func WithDefault() *Pool {
	size := runtime.NumCPU()
	if size < 1 {
		size = 1
	}

	// The size is always positive here, so New cannot fail.
	p, _ := New(size)

	return p
}

// worker is the processing loop run by each of the pool's goroutines.
func (p *Pool) worker(idx int) {
	id := curGoroutineID()

	p.mu.Lock()
	p.workerIDs[id] = struct{}{}
	p.mu.Unlock()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 {
			p.notEmpty.Wait()
		}

		t := p.queue[0]
		p.queue = p.queue[1:]

		if t.poison {
			delete(p.workerIDs, id)
			p.aliveWorkers--
			last := p.aliveWorkers == 0
			if last {
				close(p.termination)
			}
			p.mu.Unlock()

			log.DebugS(context.Background(), "Worker exiting",
				"worker", idx, "last", last)

			return
		}

		p.activeCount++
		p.mu.Unlock()

		p.runTask(idx, t)

		p.mu.Lock()
		p.activeCount--
		p.mu.Unlock()
	}
}

// runTask invokes the task body with panic containment. A panicking task
// must never take its worker down with it.
func (p *Pool) runTask(idx int, t task) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorS(context.Background(), "Task panicked",
				fmt.Errorf("panic: %v", r),
				"worker", idx, "task_id", t.id)
		}
	}()

	log.TraceS(context.Background(), "Worker running task",
		"worker", idx, "task_id", t.id)

	t.run()
}

// enqueue appends a task and wakes one worker. It reports false when the
// pool has been shut down.
func (p *Pool) enqueue(t task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return false
	}

	p.queue = append(p.queue, t)
	p.notEmpty.Signal()

	return true
}

// Execute submits a fire-and-forget task. Tasks submitted after shutdown
// are dropped with a warning.
func (p *Pool) Execute(taskFn func()) {
	t := task{id: uuid.NewString(), run: taskFn}
	if !p.enqueue(t) {
		log.WarnS(context.Background(),
			"Execute on shut down pool, dropping task", nil,
			"task_id", t.id)
	}
}

// Submit enqueues a result-bearing task and returns a future that resolves
// with its outcome. Submitting to a shut-down pool yields an already-failed
// future. Cancelling the returned future before a worker picks the task up
// prevents the task from running.
func Submit[T any](p *Pool, taskFn func() (T, error)) *future.Future[T] {
	promise := future.NewPromise[T]()
	fut := promise.Future()

	t := task{
		id: uuid.NewString(),
		run: func() {
			// Skip execution if the caller cancelled the future
			// while the task sat in the queue.
			if fut.IsCancelled() {
				log.TraceS(context.Background(),
					"Skipping cancelled task")

				return
			}

			// A panicking task fails its future; the panic is
			// re-raised so the worker logs it as usual.
			defer func() {
				if r := recover(); r != nil {
					promise.Complete(fn.Err[T](
						fmt.Errorf("task panic: %v", r),
					))
					panic(r)
				}
			}()

			v, err := taskFn()
			if err != nil {
				promise.Complete(fn.Err[T](err))
				return
			}

			promise.Complete(fn.Ok(v))
		},
		discard: func() {
			// ShutdownNow dropped the task before it started;
			// surface that to waiters as a cancellation.
			fut.Cancel()
		},
	}

	if !p.enqueue(t) {
		promise.Complete(fn.Err[T](ErrShutdown))
	}

	return fut
}

// InvokeAll submits every task and returns their futures in input order.
// Nil task slots yield already-failed futures at the same index.
func InvokeAll[T any](p *Pool,
	tasks []func() (T, error)) []*future.Future[T] {

	futures := make([]*future.Future[T], len(tasks))
	for i, taskFn := range tasks {
		if taskFn == nil {
			futures[i] = future.Failed[T](ErrNilTask)
			continue
		}

		futures[i] = Submit(p, taskFn)
	}

	return futures
}

// markShutdown flips the shutdown flag and injects one poison pill per
// still-alive worker. When drain is false, queued tasks that have not
// started are discarded first, and their discard hooks run on a separate
// goroutine (for Submit tasks this cancels the future). It reports whether
// this call performed the transition.
func (p *Pool) markShutdown(drain bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return false
	}
	p.shutdown = true

	var dropped []task
	if !drain {
		dropped = p.queue
		p.queue = nil
	}

	for i := 0; i < p.aliveWorkers; i++ {
		p.queue = append(p.queue, task{poison: true})
	}
	p.notEmpty.Broadcast()

	log.DebugS(context.Background(), "Pool shutting down",
		"drain", drain, "discarded", len(dropped))

	// Notify discarded tasks outside the lock so future callbacks cannot
	// re-enter the pool while it is held.
	if len(dropped) > 0 {
		go func() {
			for _, t := range dropped {
				if t.discard != nil {
					t.discard()
				}
			}
		}()
	}

	return true
}

// isWorkerGoroutine reports whether the calling goroutine is one of the
// pool's workers.
func (p *Pool) isWorkerGoroutine() bool {
	id := curGoroutineID()

	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.workerIDs[id]

	return ok
}

// Shutdown marks the pool shut down, lets the workers drain the queue and
// blocks until all of them have exited. When called from inside a worker
// (that is, from a task body) it returns after signalling without joining,
// since the calling worker cannot exit while its task is still running.
func (p *Pool) Shutdown() {
	p.markShutdown(true)

	if p.isWorkerGoroutine() {
		return
	}

	<-p.termination
}

// ShutdownNow marks the pool shut down, discards every queued task that has
// not started and blocks until the workers have finished their in-flight
// tasks and exited. Like Shutdown, it does not self-join from a worker.
func (p *Pool) ShutdownNow() {
	p.markShutdown(false)

	if p.isWorkerGoroutine() {
		return
	}

	<-p.termination
}

// AwaitTermination blocks until every worker has exited or the timeout
// elapses, reporting whether termination happened in time.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	select {
	case <-p.termination:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ActiveCount returns a snapshot of the number of workers currently running
// a task body.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.activeCount
}

// QueueSize returns a snapshot of the number of queued tasks, excluding
// poison pills.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, t := range p.queue {
		if !t.poison {
			n++
		}
	}

	return n
}

// AliveWorkers returns a snapshot of the number of worker goroutines that
// have not yet exited. It is zero exactly when the pool has terminated.
func (p *Pool) AliveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.aliveWorkers
}

// Size returns the fixed worker count the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// IsShutdown reports whether Shutdown or ShutdownNow has been called.
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.shutdown
}
