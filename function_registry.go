package prefs

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrFunctionNotRegistered is returned when a matcher expression calls a
// helper its registry does not hold.
var ErrFunctionNotRegistered = errors.New("prefs: matcher function not registered")

// Function is a helper that matcher expressions call with the key under
// test or other arguments. A helper deciding whether a key is stale
// returns a bool.
type Function func(args ...any) (any, error)

var registrySeq atomic.Uint64

// FunctionRegistry is the set of helpers exposed to expr, CEL and JS
// matchers. Names are case-insensitive. A matcher takes a snapshot of the
// registry when it is built, so later registrations reach only matchers
// built afterwards.
type FunctionRegistry struct {
	mu        sync.RWMutex
	id        uint64
	revision  uint64
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		id:        registrySeq.Add(1),
		functions: make(map[string]Function),
	}
}

// Register adds a matcher helper under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if name == "" {
		return errors.New("prefs: matcher function needs a name")
	}
	if fn == nil {
		return fmt.Errorf("prefs: matcher function %q is nil", name)
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("prefs: matcher function %q already registered", name)
	}
	r.functions[key] = fn
	r.revision++
	return nil
}

// snapshot copies the helpers for one matcher. The copy keeps the
// registry's identity and revision.
func (r *FunctionRegistry) snapshot() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == 0 {
		r.id = registrySeq.Add(1)
	}
	return &FunctionRegistry{
		id:        r.id,
		revision:  r.revision,
		functions: maps.Clone(r.functions),
	}
}

// fingerprint identifies this registry and its revision in program cache
// keys. Distinct registries never share a fingerprint.
func (r *FunctionRegistry) fingerprint() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == 0 {
		r.id = registrySeq.Add(1)
	}
	return fmt.Sprintf("fn%d.%d", r.id, r.revision)
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return fn(args...)
}

// callFrom is Call with the calling engine named in lookup failures.
func (r *FunctionRegistry) callFrom(engine, name string, args ...any) (any, error) {
	fn, err := r.lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%s matcher: %w", engine, err)
	}
	return fn(args...)
}

func (r *FunctionRegistry) lookup(name string) (Function, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q (no registry)", ErrFunctionNotRegistered, name)
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotRegistered, name)
	}
	return fn, nil
}

// Names lists the helpers, lower-cased and sorted, as expressions see them.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}
