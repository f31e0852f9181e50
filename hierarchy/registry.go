package hierarchy

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Registry: in-memory class table
// ---------------------------------------------------------------------------

// Registry is an in-memory Resolver. It is safe for concurrent use, so one
// registry can back many verifiers running in parallel.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates a registry seeded with the core library classes the
// verifier refers to by name.
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string]*Class)}
	for _, c := range bootstrapClasses() {
		r.classes[c.Name] = c
	}
	return r
}

func bootstrapClasses() []*Class {
	return []*Class{
		{Name: ObjectClass},
		{Name: CloneableClass, Super: ObjectClass, Interface: true},
		{Name: SerializableClass, Super: ObjectClass, Interface: true},
		{Name: ThrowableClass, Super: ObjectClass, Interfaces: []string{SerializableClass}},
		{Name: StringClass, Super: ObjectClass, Interfaces: []string{SerializableClass}},
		{Name: ClassClass, Super: ObjectClass, Interfaces: []string{SerializableClass}},
		{Name: MethodTypeClass, Super: ObjectClass, Interfaces: []string{SerializableClass}},
		{Name: MethodHandleClass, Super: ObjectClass},
	}
}

// Add registers a class, replacing any previous definition of the same name.
func (r *Registry) Add(c *Class) {
	r.mu.Lock()
	r.classes[c.Name] = c
	r.mu.Unlock()
}

// AddAll registers several classes.
func (r *Registry) AddAll(cs ...*Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cs {
		r.classes[c.Name] = c
	}
}

// Lookup implements Resolver.
func (r *Registry) Lookup(name string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Names returns all registered class names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
