package sensor

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
)

// Runner executes an external tool and returns its standard output.
// Implementations must return whatever output was produced even when
// the command exits non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// runWithTimeout bounds a single tool invocation and maps deadline
// expiry to ErrTimeout.
func runWithTimeout(ctx context.Context, r Runner, timeout time.Duration, name string, args ...string) ([]byte, error) {
	errFactory := errors.New()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := r.Run(ctx, name, args...)
	if ctx.Err() != nil {
		return out, errFactory.Wrap(ErrTimeout, ctx.Err()).
			WithData(name + " " + strings.Join(args, " "))
	}
	if err != nil {
		return out, errFactory.Wrap(ErrCommandFailed, err).
			WithData(name + " " + strings.Join(args, " "))
	}

	return out, nil
}

// call runs fn on its own goroutine so callers can abandon calls that do
// not take a context. An abandoned fn keeps running until it returns.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	errFactory := errors.New()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, errFactory.Wrap(ErrTimeout, ctx.Err())
	}
}
