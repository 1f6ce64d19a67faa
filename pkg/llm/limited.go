package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// TransientError marks a provider failure that is worth retrying
// (rate limiting, 5xx, network timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Options configures NewLimited.
type Options struct {
	RateLimitRPS float64
	MaxRetries   int
	Timeout      time.Duration
	// Backoff is the base delay between retries; doubled on every attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Limited wraps a Completer with a shared rate limiter, a per-call timeout and
// retries on transient failures.
type Limited struct {
	inner   Completer
	limiter *rate.Limiter
	opts    Options
}

// NewLimited wraps c.
func NewLimited(c Completer, opts Options) *Limited {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Limited{inner: c, limiter: limiter, opts: opts}
}

// Complete implements Completer.
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	return l.do(ctx, func(ctx context.Context) (string, error) {
		return l.inner.Complete(ctx, prompt)
	})
}

// CompleteJSON implements StructuredCompleter when the wrapped provider does.
func (l *Limited) CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error) {
	sc, ok := l.inner.(StructuredCompleter)
	if !ok {
		return "", errors.New("provider does not support structured output")
	}
	return l.do(ctx, func(ctx context.Context) (string, error) {
		return sc.CompleteJSON(ctx, prompt, name, schema)
	})
}

// SupportsStructured reports whether the wrapped provider implements
// StructuredCompleter.
func (l *Limited) SupportsStructured() bool {
	_, ok := l.inner.(StructuredCompleter)
	return ok
}

func (l *Limited) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	attempts := 1 + l.opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if l.opts.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		}
		out, err := call(reqCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == attempts-1 {
			break
		}
		delay := l.opts.Backoff << attempt
		l.opts.Logger.Warn("transient completion failure, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}
