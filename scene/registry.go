package scene

import (
	"cogentcore.org/core/ordmap"
	"github.com/cockroachdb/errors"
)

var ErrNotFound = errors.New("not registered")

// Registry maps names to shared resources in insertion order. Replacing or
// removing an entry releases the old value.
type Registry[T comparable] struct {
	kind    string
	items   *ordmap.Map[string, T]
	release func(T)
}

// NewRegistry returns an empty registry. release may be nil.
func NewRegistry[T comparable](kind string, release func(T)) *Registry[T] {
	return &Registry[T]{kind: kind, items: ordmap.New[string, T](), release: release}
}

// Add registers v under name, releasing any other value it replaces. The
// replacement keeps the original position.
func (r *Registry[T]) Add(name string, v T) {
	if old, ok := r.items.ValueByKeyTry(name); ok && old != v && r.release != nil {
		r.release(old)
	}
	r.items.Add(name, v)
}

func (r *Registry[T]) Get(name string) (T, error) {
	v, ok := r.items.ValueByKeyTry(name)
	if !ok {
		return v, errors.Wrapf(ErrNotFound, "%s %q", r.kind, name)
	}
	return v, nil
}

func (r *Registry[T]) Has(name string) bool {
	_, ok := r.items.ValueByKeyTry(name)
	return ok
}

// Remove releases and deletes name. It reports whether name was present.
func (r *Registry[T]) Remove(name string) bool {
	v, ok := r.items.ValueByKeyTry(name)
	if !ok {
		return false
	}
	if r.release != nil {
		r.release(v)
	}
	return r.items.DeleteKey(name)
}

func (r *Registry[T]) Names() []string { return r.items.Keys() }

// Values returns the values in insertion order.
func (r *Registry[T]) Values() []T { return r.items.Values() }

func (r *Registry[T]) Len() int { return r.items.Len() }

// Clear releases every value, newest first.
func (r *Registry[T]) Clear() {
	if r.release != nil {
		for i := r.items.Len() - 1; i >= 0; i-- {
			r.release(r.items.ValueByIndex(i))
		}
	}
	r.items.Reset()
}
