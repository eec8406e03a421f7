package worker

import "context"

// Future is the pending result of a job submitted to a Pool.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future that is already complete.
func Resolved[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finished or ctx is done. Giving up on the wait
// does not cancel the job.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking; ok is false while pending.
func (f *Future[T]) Result() (val T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Then calls fn with the outcome on its own goroutine once the job finished.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.val, f.err)
	}()
}

// Chain resolves to the result of next, called with f's value once f
// succeeded. An error from f is passed through and next is not called. The
// wait happens on its own goroutine, so next may submit to the pool that ran f.
func Chain[T, U any](f *Future[T], next func(T) *Future[U]) *Future[U] {
	out := newFuture[U]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			out.resolve(zero, f.err)
			return
		}
		g := next(f.val)
		<-g.done
		out.resolve(g.val, g.err)
	}()
	return out
}

// Map resolves to fn applied to f's outcome. fn sees errors too, so it can
// translate or recover from them. It runs on its own goroutine.
func Map[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	out := newFuture[U]()
	go func() {
		<-f.done
		out.resolve(fn(f.val, f.err))
	}()
	return out
}
