package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var errNilResult = errors.New("background task returned no result")

// SafeBackgroundTask runs fn outside the actor loop and delivers its value
// back as a message. Panics, timeouts and errors go through recover.
type SafeBackgroundTask[T any] struct {
	ctx     actor.Context
	fn      func() (*T, error)
	timeout time.Duration
	recover func(error) T
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		ctx: ctx,
		fn:  fn,
	}
}

// WithTimeout bounds the task. Zero disables the bound.
func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeTo runs the task and sends the value, or the recovered value, to pid.
// Without a recover function a failed task sends nothing.
func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	if value, ok := t.run(); ok {
		t.ctx.Send(pid, value)
	}
}

func (t *SafeBackgroundTask[T]) run() (T, bool) {
	task := io.Map(io.Eval(t.fn), func(a *T) T {
		if a == nil {
			panic(errNilResult)
		}
		return *a
	})
	if t.timeout > 0 {
		task = io.WithTimeout[T](t.timeout)(task)
	}
	result := io.RunSync(task)
	if result.Error == nil {
		return result.Value, true
	}
	if t.recover == nil {
		var zero T
		return zero, false
	}
	return t.recover(result.Error), true
}

// MapBackgroundTask transforms the result of bgt. Recover and timeout are set
// on the returned task.
func MapBackgroundTask[T, T2 any](bgt *SafeBackgroundTask[T], mapFn func(*T) *T2) *SafeBackgroundTask[T2] {
	return &SafeBackgroundTask[T2]{
		ctx: bgt.ctx,
		fn: func() (*T2, error) {
			r, err := bgt.fn()
			if err != nil {
				return nil, err
			}
			return mapFn(r), nil
		},
	}
}
