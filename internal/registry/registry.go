// Package registry keeps named values that several goroutines look up and
// replace concurrently.
package registry

import (
	"sync"

	"github.com/alphadose/haxmap"
)

type Registry[T any] interface {
	Get(name string) (T, bool)
	Add(name string, value T)
	GetOrAdd(name string, value func() T) (T, bool)
	// Swap stores value under name and returns the value it replaced.
	Swap(name string, value T) (T, bool)
	// DelIf removes the value stored under name when keep reports false for it.
	DelIf(name string, keep func(T) bool) bool
	Del(name string)
	Each(fn func(name string, value T) bool)
	Len() int
}

type registry[T any] struct {
	// mu serializes compound operations; single reads go straight to the map.
	mu     sync.Mutex
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *registry[T]) Swap(name string, value T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.values.Get(name)
	r.values.Set(name, value)
	return prev, ok
}

func (r *registry[T]) DelIf(name string, keep func(T) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.values.Get(name)
	if !ok || keep(value) {
		return false
	}
	r.values.Del(name)
	return true
}

func (r *registry[T]) Del(name string) {
	r.values.Del(name)
}

func (r *registry[T]) Each(fn func(name string, value T) bool) {
	r.values.ForEach(fn)
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}
