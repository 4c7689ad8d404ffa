package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nemanja-m/gomar/pkg/core"
)

// Opener rebuilds a live DataSource from a shard descriptor. Every driver
// must implement it.
type Opener interface {
	Open(ctx context.Context, shard Shard) (core.DataSource, error)
}

// Counter reports the number of records behind the options. Drivers that
// implement it are split into contiguous ranges by the factory.
type Counter interface {
	Count(ctx context.Context, options json.RawMessage) (int64, error)
}

// Splitter lets a driver partition its data itself. It takes precedence
// over Counter.
type Splitter interface {
	Split(ctx context.Context, options json.RawMessage, n int) ([]Shard, error)
}

var (
	mu      sync.RWMutex
	drivers = make(map[string]any)
)

// Register makes a driver available under name on both the producer and
// the worker side. Capabilities are checked when a factory is built.
func Register(name string, driver any) error {
	mu.Lock()
	defer mu.Unlock()
	if driver == nil {
		return fmt.Errorf("nil driver for source: %s", name)
	}
	if _, exists := drivers[name]; exists {
		return fmt.Errorf("source already registered: %s", name)
	}
	drivers[name] = driver
	return nil
}

// List returns the registered source names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Opener, error) {
	mu.RLock()
	driver, exists := drivers[name]
	mu.RUnlock()
	if !exists {
		return nil, &core.ConfigurationError{Component: "source", Reason: fmt.Sprintf("unknown source %q", name)}
	}
	opener, ok := driver.(Opener)
	if !ok {
		return nil, &core.ConfigurationError{Component: "source", Reason: fmt.Sprintf("source %q cannot open shards", name)}
	}
	_, counts := driver.(Counter)
	_, splits := driver.(Splitter)
	if !counts && !splits {
		return nil, &core.ConfigurationError{Component: "source", Reason: fmt.Sprintf("source %q can neither count nor split its records", name)}
	}
	return opener, nil
}

func mustRegister(name string, driver any) {
	if err := Register(name, driver); err != nil {
		panic(err)
	}
}
