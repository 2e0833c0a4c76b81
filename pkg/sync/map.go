package sync

import (
	"sync"

	"golang.org/x/exp/maps"
)

// Map is a generic map guarded by a RWMutex.
type Map[K comparable, V any] struct {
	mutex sync.RWMutex
	data  map[K]V
}

// NewMap creates map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]V),
	}
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data[key] = value
}

// Load returns the value stored in the map for a key.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok = m.data[key]
	return value, ok
}

// ReplaceWithFunc calls f with the current value under the write lock and stores or deletes its result.
func (m *Map[K, V]) ReplaceWithFunc(key K, f func(oldValue V, oldLoaded bool) (newValue V, doDelete bool)) (oldValue V, oldLoaded bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	v, ok := m.data[key]
	newValue, del := f(v, ok)
	if del {
		delete(m.data, key)
		return v, ok
	}
	m.data[key] = newValue
	return v, ok
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) (deleted bool) {
	_, deleted = m.PullOut(key)
	return deleted
}

// PullOut loads and deletes the value for a key.
func (m *Map[K, V]) PullOut(key K) (value V, ok bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	value, ok = m.data[key]
	delete(m.data, key)
	return value, ok
}

// Range calls f for each entry of a snapshot taken under the read lock. If f returns false, range stops the iteration.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.mutex.RLock()
	snapshot := maps.Clone(m.data)
	m.mutex.RUnlock()
	for key, value := range snapshot {
		if !f(key, value) {
			return
		}
	}
}

// Length returns number of stored values.
func (m *Map[K, V]) Length() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.data)
}
