package broker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/miladsoleymani/topicsink/core"
)

// Factory creates an unconnected Broker from the given Config.
type Factory func(cfg Config) (core.Broker, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a broker factory under a URL scheme. Plugins call this from init().
func Register(scheme string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[scheme] = factory
}

// Create instantiates a broker by scheme using the registered factory.
func Create(scheme string, cfg Config) (core.Broker, error) {
	mu.RLock()
	f, ok := factories[scheme]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown broker scheme %q", core.ErrInvalidConfig, scheme)
	}
	cfg.Scheme = scheme
	return f(cfg)
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
