package jobs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nemanja-m/gomar/pkg/core"
)

// Job pairs the map and reduce functions of one producer. Only its name
// travels in map tasks, so producer and workers must register the same
// name.
type Job struct {
	Map    core.MapFunc
	Reduce core.ReduceFunc
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Job)
)

func Register(name string, job Job) error {
	if job.Map == nil || job.Reduce == nil {
		return fmt.Errorf("job %s must define both map and reduce functions", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	registry[name] = job
	return nil
}

func Get(name string) (Job, error) {
	mu.RLock()
	defer mu.RUnlock()
	job, exists := registry[name]
	if !exists {
		return Job{}, fmt.Errorf("job not found: %s", name)
	}
	return job, nil
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
