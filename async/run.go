package async

import (
	"github.com/tgfetch/tgfetch/generic"
)

// Run will run a function in a goroutine, returning its result via a channel.
func Run[T any](f func() T) <-chan T {
	c := make(chan T)
	go func() {
		c <- f()
	}()
	return c
}

// RunResult is Run for (T, error) functions, wrapping the outcome as a Result.
func RunResult[T any](f func() (T, error)) <-chan generic.Result[T] {
	return Run(func() generic.Result[T] {
		return generic.NewResult(f())
	})
}
