package bridge

import (
	"github.com/vk/wirecell/internal/scope"
)

type outcome struct {
	value any
	err   error
}

// Scheduler is a single-goroutine cooperative loop. It is explicitly owned:
// callers create it, run it, and shut it down; nothing in this package
// relies on process-global state.
type Scheduler struct {
	tasks chan func()
	stop  chan struct{}
	done  chan struct{}
}

// NewScheduler creates a scheduler. It does nothing until Run is called.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(chan func()),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run processes scheduled operations until Shutdown. It blocks; start it on
// a dedicated goroutine.
func (sc *Scheduler) Run() {
	defer close(sc.done)
	for {
		select {
		case task := <-sc.tasks:
			task()
		case <-sc.stop:
			return
		}
	}
}

// Shutdown stops the loop and waits for it to drain the operation in
// flight. Operations scheduled after Shutdown fail.
func (sc *Scheduler) Shutdown() {
	close(sc.stop)
	<-sc.done
}

// Do schedules f onto the loop and blocks the calling goroutine until it
// completes. This is the one-directional blocking bridge from synchronous
// code into the loop.
func (sc *Scheduler) Do(f func() (any, error)) (any, error) {
	res := make(chan outcome, 1)
	task := func() {
		v, err := f()
		res <- outcome{value: v, err: err}
	}
	select {
	case sc.tasks <- task:
	case <-sc.stop:
		return nil, &scope.UsageError{Reason: "scheduler is shut down"}
	}
	o := <-res
	return o.value, o.err
}

// serviceUntil keeps the loop responsive while the current loop operation
// waits on a worker: other scheduled operations are serviced until the
// worker's outcome arrives. Must only be called from the loop goroutine.
func (sc *Scheduler) serviceUntil(res <-chan outcome) (any, error) {
	for {
		select {
		case o := <-res:
			return o.value, o.err
		case task := <-sc.tasks:
			task()
		}
	}
}
