package atom

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownAtom is returned when a registry lookup fails.
var ErrUnknownAtom = errors.New("unknown atom")

// ErrDuplicateAtom is returned when a name is registered twice.
var ErrDuplicateAtom = errors.New("duplicate atom")

// ErrNilExecutor is returned when a descriptor carries no entry point.
var ErrNilExecutor = errors.New("nil executor")

// Registry maps atom names to their contract and executor with
// deterministic ordering. Contracts are immutable once registered: both
// Register and Get work on copies.
type Registry struct {
	mu      sync.RWMutex
	ordered []string
	index   map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]Descriptor)}
}

// Discover builds a registry from a descriptor table, the explicit
// startup-time registration pass compiled-in catalogs use.
func Discover(descriptors []Descriptor) (*Registry, error) {
	r := NewRegistry()

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register validates the descriptor's contract and stores it under its
// name. Duplicate names and invalid contracts are rejected.
func (r *Registry) Register(d Descriptor) error {
	if d.Executor == nil {
		return fmt.Errorf("%w: %s", ErrNilExecutor, d.Contract.Name)
	}

	contract := d.Contract.clone()
	if err := contract.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[contract.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAtom, contract.Name)
	}

	r.index[contract.Name] = Descriptor{Contract: contract, Executor: d.Executor}
	r.ordered = append(r.ordered, contract.Name)

	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.index[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownAtom, name)
	}

	return Descriptor{Contract: d.Contract.clone(), Executor: d.Executor}, nil
}

// Contracts returns every registered contract in registration order.
func (r *Registry) Contracts() []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Contract, 0, len(r.ordered))

	for _, name := range r.ordered {
		out = append(out, r.index[name].Contract.clone())
	}

	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.ordered))
	copy(out, r.ordered)

	return out
}

// Len returns the number of registered atoms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ordered)
}
