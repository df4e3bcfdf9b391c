// Package parallel runs independent tasks on a bounded number of goroutines
// and hands their results back in the order the tasks were given.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
)

// Task computes one result.
type Task[T any] func() (T, error)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("parallel: iterator closed")

// PanicError carries a panic raised by a task. Next re-panics with it so the
// failure surfaces in the goroutine that consumes the results.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v\n%s", e.Value, e.Stack)
}

type result[T any] struct {
	value T
	err   error
	panic *PanicError
}

// Iterator schedules tasks ahead of the consumer and delivers their results
// in task order. New tasks are only pulled from the source when Next is
// called, there is no scheduling goroutine.
//
// An Iterator must be used from a single goroutine.
type Iterator[T any] struct {
	next    func() (Task[T], bool)
	stop    func()
	slots   chan struct{}
	pending []chan result[T]
	closed  bool
}

// New starts running up to workers tasks of tasks concurrently. workers
// values below 1 are treated as 1.
func New[T any](tasks iter.Seq[Task[T]], workers int) *Iterator[T] {
	if workers < 1 {
		workers = 1
	}
	next, stop := iter.Pull(tasks)
	it := &Iterator[T]{
		next:  next,
		stop:  stop,
		slots: make(chan struct{}, workers),
	}
	for range workers {
		it.schedule()
	}
	return it
}

// FromSlice returns an iterator over the results of tasks.
func FromSlice[T any](tasks []Task[T], workers int) *Iterator[T] {
	return New(func(yield func(Task[T]) bool) {
		for _, t := range tasks {
			if !yield(t) {
				return
			}
		}
	}, workers)
}

func (it *Iterator[T]) schedule() {
	if it.closed {
		return
	}
	task, ok := it.next()
	if !ok {
		return
	}
	ch := make(chan result[T], 1)
	it.pending = append(it.pending, ch)
	go func() {
		it.slots <- struct{}{}
		defer func() { <-it.slots }()
		ch <- run(task)
	}()
}

func run[T any](task Task[T]) (r result[T]) {
	defer func() {
		if v := recover(); v != nil {
			r = result[T]{panic: &PanicError{Value: v, Stack: debug.Stack()}}
		}
	}()
	v, err := task()
	return result[T]{value: v, err: err}
}

// HasNext reports whether a result is outstanding.
func (it *Iterator[T]) HasNext() bool {
	return !it.closed && len(it.pending) > 0
}

// Next schedules one more task and waits for the oldest outstanding one.
// The task's error is returned as is. If ctx is done, ctx.Err() is returned,
// nothing new is scheduled and the awaited result stays queued for the next
// call.
func (it *Iterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if it.closed {
		return zero, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	it.schedule()
	if len(it.pending) == 0 {
		return zero, fmt.Errorf("parallel: no outstanding tasks")
	}

	select {
	case r := <-it.pending[0]:
		it.pending[0] = nil
		it.pending = it.pending[1:]
		if r.panic != nil {
			panic(r.panic)
		}
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// All yields every remaining result in order. It stops at the first error,
// which is yielded together with the zero value.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for it.HasNext() {
			v, err := it.Next(ctx)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Close stops pulling tasks. Running tasks are abandoned and finish in the
// background.
func (it *Iterator[T]) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.pending = nil
	it.stop()
}
