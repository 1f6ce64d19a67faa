package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Factory builds an unconnected warehouse adapter.
type Factory func(logger *slog.Logger) Adapter

// ErrNoType is returned when a target has no warehouse type.
var ErrNoType = errors.New("warehouse type not specified")

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

func normalizeType(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register makes a warehouse type available to targets.
// Adapter packages call it from init().
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[normalizeType(name)] = factory
}

// Get returns the factory for a warehouse type.
func Get(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[normalizeType(name)]
	return f, ok
}

// NewAdapter builds the adapter for cfg.Type. The returned adapter is not
// connected yet.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if normalizeType(cfg.Type) == "" {
		return nil, ErrNoType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Types()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// Types returns the registered warehouse types, sorted.
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether targets may use the warehouse type.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError names a target type no adapter was registered for.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}
