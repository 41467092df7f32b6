// Package sync_ provides small typed wrappers over the standard sync
// primitives used by the session and pubsub layers.
package sync_

import "sync"

// Mutexed[T] guards a value behind a mutex, only exposing it via Locked.
type Mutexed[T any] struct {
	mu    sync.Mutex
	value T
}

func NewMutexed[T any](value T) *Mutexed[T] {
	return &Mutexed[T]{value: value}
}

// Locked runs a function with the lock acquired.
func (m *Mutexed[T]) Locked(f func(T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m.value)
}

// Get returns a copy of the inner value.
func (m *Mutexed[T]) Get() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Set overwrites the inner value.
func (m *Mutexed[T]) Set(value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
}

// Swap overwrites the inner value, returning the previous inner value.
func (m *Mutexed[T]) Swap(value T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.value
	m.value = value
	return old
}

// RWMutexed[T] is Mutexed[T] with a cheaper read path.
type RWMutexed[T any] struct {
	mu    sync.RWMutex
	value T
}

func NewRWMutexed[T any](value T) *RWMutexed[T] {
	return &RWMutexed[T]{value: value}
}

func (m *RWMutexed[T]) Locked(f func(T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f(m.value)
}

// RLocked runs a function with only the read lock acquired.
func (m *RWMutexed[T]) RLocked(f func(T) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f(m.value)
}

func (m *RWMutexed[T]) Get() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

func (m *RWMutexed[T]) Set(value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
}

func (m *RWMutexed[T]) Swap(value T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.value
	m.value = value
	return old
}
