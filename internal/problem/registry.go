package problem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
	ErrIncompatible    = errors.New("request incompatible with problem")
)

var problemRegistry = struct {
	mu sync.RWMutex
	m  map[string]Problem
}{
	m: make(map[string]Problem),
}

func init() {
	registerBuiltins()
}

// Register makes p available by name.
func Register(p Problem) error {
	if p == nil {
		return errors.New("problem is required")
	}
	if p.Name() == "" {
		return errors.New("problem name is required")
	}

	problemRegistry.mu.Lock()
	defer problemRegistry.mu.Unlock()

	if _, exists := problemRegistry.m[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, p.Name())
	}
	problemRegistry.m[p.Name()] = p
	return nil
}

func Get(name string) (Problem, error) {
	problemRegistry.mu.RLock()
	p, ok := problemRegistry.m[name]
	problemRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return p, nil
}

func Names() []string {
	problemRegistry.mu.RLock()
	defer problemRegistry.mu.RUnlock()

	names := make([]string, 0, len(problemRegistry.m))
	for name := range problemRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List describes every registered problem, sorted by name.
func List() []Info {
	names := Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		if p, err := Get(name); err == nil {
			out = append(out, p.Info())
		}
	}
	return out
}

func resetRegistryForTests() {
	problemRegistry.mu.Lock()
	problemRegistry.m = make(map[string]Problem)
	problemRegistry.mu.Unlock()
	registerBuiltins()
}
