package cache

import (
	"time"

	"github.com/coapclient/go-coap/pkg/sync"
)

type Element[T any] struct {
	validUntil time.Time
	data       T
	onExpire   func(d T)
}

// NewElement creates an element valid until validUntil; a zero time never expires.
func NewElement[T any](data T, validUntil time.Time, onExpire func(d T)) *Element[T] {
	return &Element[T]{data: data, validUntil: validUntil, onExpire: onExpire}
}

func (e *Element[T]) IsExpired(now time.Time) bool {
	if e.validUntil.IsZero() {
		return false
	}
	return now.After(e.validUntil)
}

func (e *Element[T]) Data() T {
	return e.data
}

// Cache keeps elements until CheckExpirations removes them. All methods take
// the current time explicitly so callers with their own clock stay deterministic.
type Cache[K comparable, V any] struct {
	data *sync.Map[K, *Element[V]]
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: sync.NewMap[K, *Element[V]](),
	}
}

// Store sets the element for key, replacing any previous one.
func (c *Cache[K, V]) Store(key K, e *Element[V]) {
	c.data.Store(key, e)
}

// Load returns the unexpired element for key.
func (c *Cache[K, V]) Load(now time.Time, key K) (*Element[V], bool) {
	e, ok := c.data.Load(key)
	if !ok || e.IsExpired(now) {
		return nil, false
	}
	return e, true
}

// CheckExpirations deletes expired elements and invokes their onExpire.
func (c *Cache[K, V]) CheckExpirations(now time.Time) {
	c.data.Range(func(key K, e *Element[V]) bool {
		if e.IsExpired(now) {
			c.data.Delete(key)
			if e.onExpire != nil {
				e.onExpire(e.data)
			}
		}
		return true
	})
}

func (c *Cache[K, V]) Length() int {
	return c.data.Length()
}
