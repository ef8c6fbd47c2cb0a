package queue

import "sync"

// NameRegistry enforces queue-name uniqueness within a process. A single
// package-level instance (DefaultRegistry) is shared by every Queue
// constructed via New, matching the source system's module-level name set.
type NameRegistry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewNameRegistry creates an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{names: make(map[string]struct{})}
}

// DefaultRegistry is the process-wide registry used by New.
var DefaultRegistry = NewNameRegistry()

// Register claims name, returning a *Error (ErrCodeDuplicateQueueName) if
// it is already in use.
func (r *NameRegistry) Register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.names[name]; taken {
		return newDuplicateQueueNameError(name)
	}
	r.names[name] = struct{}{}
	return nil
}

// Release frees name so it can be reused. Used by Queue.Close.
func (r *NameRegistry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

// ResetForTesting clears every registered name. Only meant for use from
// _test.go files that construct many queues across table-driven cases.
func (r *NameRegistry) ResetForTesting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = make(map[string]struct{})
}
