package gpu

import (
	"log"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotInstalled means that a backend implementation required a
// platform-specific library that is not present in the system.
var ErrNotInstalled = errors.New("gpu: missing required library")

// ErrNoDevice means that no suitable device could be found.
var ErrNoDevice = errors.New("gpu: no suitable device found")

// Factory opens a Backend implementation.
// Factory implementations are expected to call Register exactly
// once, typically from an init function of the package that
// defines them.
type Factory interface {
	// Open initializes the backend. Repeated calls with the same
	// receiver must return the same Backend instance.
	Open() (Backend, error)

	// Name returns the factory's name, used for selection and for
	// replacing an earlier registration of the same name.
	Name() string

	// Close deinitializes the backend opened by Open, if any.
	Close()
}

var (
	mu        sync.Mutex
	factories []Factory
)

// Register registers a Factory. If a factory with the same name
// has already been registered, it is replaced.
func Register(f Factory) {
	mu.Lock()
	defer mu.Unlock()
	for i := range factories {
		if factories[i].Name() == f.Name() {
			factories[i] = f
			log.Printf("[!] gpu backend '%s' replaced", f.Name())
			return
		}
	}
	factories = append(factories, f)
	log.Printf("gpu backend '%s' registered", f.Name())
}

// Factories returns the registered Factory values.
func Factories() []Factory {
	mu.Lock()
	defer mu.Unlock()
	fs := make([]Factory, len(factories))
	copy(fs, factories)
	return fs
}

// Open opens the first registered factory whose name contains
// substr, case-sensitively. An empty substr opens the first
// registered factory. It returns ErrNoDevice if none match; if
// every match fails to open, it returns the last failure wrapped.
func Open(substr string) (Backend, error) {
	var lastErr error
	for _, f := range Factories() {
		if substr != "" && !contains(f.Name(), substr) {
			continue
		}
		b, err := f.Open()
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, errors.Wrap(lastErr, "gpu: all matching backends failed to open")
	}
	return nil, ErrNoDevice
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
