package property

import (
	"sync"
)

// ChangeFunc is called after a write changed at least one value in a
// namespace. It runs on the writer's goroutine while the store's write
// lock is held, so within one namespace callbacks observe the same order
// the writes completed in; implementations must not call back into the
// store and should hand off quickly (the driver's callback only enqueues
// an event on the bus).
type ChangeFunc func(namespace string)

// Store is a namespaced key/value state store with change detection.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]any
	onChange   ChangeFunc
}

// New creates an empty store.
func New() *Store {
	return &Store{
		namespaces: make(map[string]map[string]any),
	}
}

// OnChange sets the change callback. Pass nil to disable notification.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Put sets a single key in a namespace, replacing any previous value.
// The change callback fires only if the value actually differs.
func (s *Store) Put(namespace, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespace(namespace)
	old, existed := ns[key]
	if existed && Equal(old, value) {
		return
	}
	ns[key] = value
	s.notify(namespace)
}

// Merge shallow-merges values into a namespace: keys present in values
// overwrite, keys absent are left untouched. The change callback fires at
// most once per call, and only if at least one key's value differs.
func (s *Store) Merge(namespace string, values map[string]any) {
	if len(values) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespace(namespace)
	changed := false
	for key, value := range values {
		old, existed := ns[key]
		if existed && Equal(old, value) {
			continue
		}
		ns[key] = value
		changed = true
	}
	if changed {
		s.notify(namespace)
	}
}

// Get returns the value for a key, or def if the namespace or key is
// absent. It never blocks on writers beyond lock acquisition and never
// fails for a missing key.
func (s *Store) Get(namespace, key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return def
	}
	value, ok := ns[key]
	if !ok {
		return def
	}
	return value
}

// Namespace returns a copy of the namespace's current mapping.
// A missing namespace yields an empty map.
func (s *Store) Namespace(namespace string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	out := make(map[string]any, len(ns))
	for k, v := range ns {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the entire store.
func (s *Store) Snapshot() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any, len(s.namespaces))
	for name, ns := range s.namespaces {
		m := make(map[string]any, len(ns))
		for k, v := range ns {
			m[k] = v
		}
		out[name] = m
	}
	return out
}

// namespace returns the live mapping for a namespace, creating it if
// needed. Callers must hold the write lock.
func (s *Store) namespace(name string) map[string]any {
	ns, ok := s.namespaces[name]
	if !ok {
		ns = make(map[string]any)
		s.namespaces[name] = ns
	}
	return ns
}

// notify invokes the change callback. Callers must hold the write lock;
// holding it across the callback is what gives per-namespace ordering.
func (s *Store) notify(namespace string) {
	if s.onChange != nil {
		s.onChange(namespace)
	}
}
