package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Default execution limits.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxSteps = 5_000_000
)

// ErrNoResult is returned when a snippet finishes without binding the
// requested global.
var ErrNoResult = errors.New("snippet did not assign result")

// EvalError wraps any failure raised while compiling or executing a snippet.
type EvalError struct {
	Name      string
	Backtrace string
	Err       error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("starlark %s: %v", e.Name, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Options bounds a single execution.
type Options struct {
	Timeout  time.Duration
	MaxSteps uint64
	Logger   *slog.Logger
}

// fileOptions permits the top-level loops and conditionals that generated
// snippets routinely contain.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Exec runs src in a fresh thread with the given predeclared globals and
// returns the resulting module globals. The thread has no load handler, so
// load statements fail. Cancellation of ctx or the timeout cancels the thread.
func Exec(ctx context.Context, name, src string, predeclared starlark.StringDict, opts Options) (starlark.StringDict, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug("snippet print", "snippet", name, "msg", msg)
		},
	}
	thread.SetMaxExecutionSteps(opts.MaxSteps)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, name, src, predeclared)
	if err != nil {
		evalErr := &EvalError{Name: name, Err: err}
		var se *starlark.EvalError
		if errors.As(err, &se) {
			evalErr.Backtrace = se.Backtrace()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			evalErr.Err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, evalErr
	}
	logger.Debug("snippet executed", "snippet", name, "steps", thread.ExecutionSteps())
	return globals, nil
}

// Result runs src and returns the value bound to the global named key.
func Result(ctx context.Context, name, src, key string, predeclared starlark.StringDict, opts Options) (starlark.Value, error) {
	globals, err := Exec(ctx, name, src, predeclared, opts)
	if err != nil {
		return nil, err
	}
	v, ok := globals[key]
	if !ok || v == starlark.None {
		return nil, &EvalError{Name: name, Err: ErrNoResult}
	}
	return v, nil
}
