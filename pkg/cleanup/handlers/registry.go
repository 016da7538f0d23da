package handlers

import (
	"fmt"
	"strings"
	"sync"

	"mercator-hq/janitor/pkg/cleanup"
)

// Builtins holds one binding per built-in category key.
type Builtins struct {
	Messages      Binding
	Notifications Binding
	ProfileVisits Binding
	FeedCache     Binding
	MediaUploads  Binding
}

// bindings maps each built-in key to its field. A key added to
// cleanup.BuiltinKeys without a case here fails NewRegistry.
func (b Builtins) bindings() map[cleanup.Key]Binding {
	return map[cleanup.Key]Binding{
		cleanup.KeyMessages:      b.Messages,
		cleanup.KeyNotifications: b.Notifications,
		cleanup.KeyProfileVisits: b.ProfileVisits,
		cleanup.KeyFeedCache:     b.FeedCache,
		cleanup.KeyMediaUploads:  b.MediaUploads,
	}
}

// Registry maps category keys to handlers and estimators.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[cleanup.Key]Handler
	estimators map[cleanup.Key]Estimator
}

// Empty returns a registry with no bindings.
func Empty() *Registry {
	return &Registry{
		handlers:   make(map[cleanup.Key]Handler),
		estimators: make(map[cleanup.Key]Estimator),
	}
}

// NewRegistry builds a registry from the built-in bindings. It returns an
// error naming every built-in key that has no handler.
func NewRegistry(b Builtins) (*Registry, error) {
	r := Empty()
	bound := b.bindings()

	var missing []string
	for _, key := range cleanup.BuiltinKeys() {
		binding, ok := bound[key]
		if !ok || binding.Handler == nil {
			missing = append(missing, string(key))
			continue
		}
		r.Register(key, binding.Handler, binding.Estimator)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unbound built-in cleanup keys: %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// Register binds a handler and an optional estimator to key, replacing any
// previous binding.
func (r *Registry) Register(key cleanup.Key, h Handler, e Estimator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h != nil {
		r.handlers[key] = h
	} else {
		delete(r.handlers, key)
	}
	if e != nil {
		r.estimators[key] = e
	} else {
		delete(r.estimators, key)
	}
}

// Handler returns the handler bound to key.
func (r *Registry) Handler(key cleanup.Key) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[key]
	return h, ok
}

// Estimator returns the estimator bound to key.
func (r *Registry) Estimator(key cleanup.Key) (Estimator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.estimators[key]
	return e, ok
}

// Keys returns every key with a bound handler.
func (r *Registry) Keys() []cleanup.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]cleanup.Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}
