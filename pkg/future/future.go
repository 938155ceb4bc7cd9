// Package future provides the awaitable values asynchronous keyword providers
// return. A Future is resolved exactly once, either with a value or an error,
// and may be awaited any number of times by any number of goroutines.
package future

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/casualjim/kwexec/pkg/stdx"
)

// Awaiter is the type-erased view of a Future. The keyword invoker only ever
// sees Awaiters because the result type of a provider method is not known
// until run time.
type Awaiter interface {
	AwaitAny(ctx context.Context) (any, error)
}

// Future is the read side of an asynchronous computation.
type Future[T any] interface {
	Awaiter
	// Await blocks until the value is available or ctx is done. A context
	// error does not resolve the future; it can be awaited again.
	Await(ctx context.Context) (T, error)
	// Done is closed once the future is resolved.
	Done() <-chan struct{}
}

// Promise is the write side of an asynchronous computation. Only the first
// call to Complete or Error has any effect.
type Promise[T any] interface {
	Complete(T)
	Error(error)
}

// CompletableFuture combines both sides.
type CompletableFuture[T any] interface {
	Future[T]
	Promise[T]
}

// PanicError is the error a future resolves with when the function computing
// it panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

type future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New creates an unresolved future.
func New[T any]() CompletableFuture[T] {
	return &future[T]{done: make(chan struct{})}
}

// Resolved returns a future that already holds value.
func Resolved[T any](value T) Future[T] {
	f := New[T]()
	f.Complete(value)
	return f
}

// Failed returns a future that already holds err.
func Failed[T any](err error) Future[T] {
	f := New[T]()
	f.Error(err)
	return f
}

// Go runs fn on a new goroutine and returns a future for its result. A panic
// in fn resolves the future with a *PanicError.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) Future[T] {
	f := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Error(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			f.Error(err)
			return
		}
		f.Complete(v)
	}()
	return f
}

func (f *future[T]) Complete(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return stdx.Zero[T](), ctx.Err()
	}
}

func (f *future[T]) AwaitAny(ctx context.Context) (any, error) {
	return f.Await(ctx)
}
