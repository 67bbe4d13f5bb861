// Package lane implements the single execution lane the worker serializes
// all state mutation through (spec §5): every public worker operation, and
// every compiler-service callback, is scheduled as a closure on the lane
// and runs to completion before the next one starts. No corpus repo ships
// a dedicated serial-queue/actor abstraction (errgroup joins parallel work
// and singleflight dedupes concurrent calls to the same key; neither
// models FIFO serialization of heterogeneous work), so this is a plain
// channel-of-closures built on the standard library, following the same
// "one goroutine draining a channel" shape ConradIrwin/conl-lsp's
// Connection.Serve uses for its own read loop.
package lane

import "context"

// Lane runs submitted functions one at a time, in submission order, on a
// single internal goroutine.
type Lane struct {
	tasks chan func()
	done  chan struct{}
}

// New allocates a Lane without starting its goroutine. Run must be called
// to actually drain the lane.
func New() *Lane {
	return &Lane{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run drains tasks until ctx is cancelled or Close is called. Intended to
// be started once in its own goroutine, mirroring Connection.Serve's
// "one loop, run it in a goroutine" shape.
func (l *Lane) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn, ok := <-l.tasks:
			if !ok {
				return
			}
			fn()
		}
	}
}

// Post schedules fn to run on the lane and returns immediately. Use Post
// for fire-and-forget work, such as routing a compiler-service callback
// back onto the lane.
func (l *Lane) Post(fn func()) {
	l.tasks <- fn
}

// Call schedules fn and blocks until it has run, returning fn's error.
// Use Call for synchronous worker operations that must report a result to
// their caller.
func (l *Lane) Call(fn func() error) error {
	reply := make(chan error, 1)
	l.tasks <- func() {
		reply <- fn()
	}
	return <-reply
}

// CallValue is like Call but returns a value alongside the error, for
// operations whose result is not simply success/failure.
func CallValue[T any](l *Lane, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	reply := make(chan result, 1)
	l.tasks <- func() {
		v, err := fn()
		reply <- result{v, err}
	}
	r := <-reply
	return r.v, r.err
}

// Close stops accepting new work and waits for the lane to drain.
func (l *Lane) Close() {
	close(l.tasks)
	<-l.done
}
