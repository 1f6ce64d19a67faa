// Package llm defines the text-completion capability consumed by the pipeline.
//
// Concrete providers live in pkg/llm subdirectories and register themselves
// with the registry in their init() functions, the same way warehouse
// adapters do.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StructuredCompleter is implemented by providers that can constrain their
// reply to a JSON schema.
type StructuredCompleter interface {
	Completer
	CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f(ctx, prompt).
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config holds provider settings.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string

	// RateLimitRPS caps outbound calls per second (0 = unlimited).
	RateLimitRPS float64
	// MaxRetries is the number of extra attempts on transient failures.
	MaxRetries int
	// Timeout bounds a single provider call (0 = none).
	Timeout time.Duration
}

// ErrUnknownProvider is returned when no provider is registered under a name.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Factory builds a provider client from configuration.
type Factory func(ctx context.Context, cfg Config, logger *slog.Logger) (Completer, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Providers returns all registered provider names (sorted).
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a provider is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// New builds the configured provider and wraps it with rate limiting and
// retries.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownProvider, cfg.Provider, Providers())
	}

	c, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider %s: %w", cfg.Provider, err)
	}

	return NewLimited(c, Options{
		RateLimitRPS: cfg.RateLimitRPS,
		MaxRetries:   cfg.MaxRetries,
		Timeout:      cfg.Timeout,
		Logger:       logger,
	}), nil
}
