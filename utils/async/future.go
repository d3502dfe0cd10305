// Package async is a tiny future helper for one-shot results that are
// produced off-loop and collected later, possibly from a Select.
package async

// Future holds a single result that will arrive once. Must be created with
// NewFuture or Async.
type Future[T any] struct {
	ch chan T
}

// NewFuture creates an unresolved Future.
func NewFuture[T any]() Future[T] {
	return Future[T]{ch: make(chan T, 1)}
}

// Async runs f in its own goroutine and returns its Future.
func Async[T any](f func() T) Future[T] {
	ret := NewFuture[T]()
	go func() {
		ret.ch <- f()
	}()
	return ret
}

// Resolve fulfils the Future. Resolving twice blocks; don't.
func (f *Future[T]) Resolve(v T) {
	f.ch <- v
}

// Await blocks until the result is available.
func (f Future[T]) Await() T {
	return <-f.ch
}

// Ch exposes the underlying channel for use in a select.
func (f Future[T]) Ch() <-chan T {
	return f.ch
}

// Await waits for the result of a Future.
func Await[T any](f Future[T]) T {
	return <-f.ch
}

// AwaitAll collects the results of multiple Futures, in argument order.
func AwaitAll[T any](fs ...Future[T]) []T {
	ret := make([]T, len(fs))
	for i, f := range fs {
		ret[i] = Await(f)
	}
	return ret
}
