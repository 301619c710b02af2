// Package cache provides a small thread-safe LRU map.
package cache

import "sync"

// LRU is a fixed-capacity map that evicts the least recently used key.
// The zero value is not usable; call NewLRU.
type LRU[K comparable, V any] struct {
	capacity int

	mu    sync.Mutex
	nodes map[K]*node[K, V]
	front *node[K, V] // most recently used
	back  *node[K, V] // least recently used
}

type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// NewLRU returns an LRU holding at most capacity entries. A capacity below
// one is raised to one.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		nodes:    make(map[K]*node[K, V], capacity),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.touch(n)
	return n.value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full. It reports whether an eviction happened.
func (c *LRU[K, V]) Put(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nodes[key]; ok {
		n.value = value
		c.touch(n)
		return false
	}
	n := &node[K, V]{key: key, value: value}
	c.nodes[key] = n
	c.pushFront(n)
	if len(c.nodes) <= c.capacity {
		return false
	}
	old := c.back
	c.unlink(old)
	delete(c.nodes, old.key)
	return true
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

func (c *LRU[K, V]) touch(n *node[K, V]) {
	if n == c.front {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *LRU[K, V]) pushFront(n *node[K, V]) {
	n.prev, n.next = nil, c.front
	if c.front != nil {
		c.front.prev = n
	}
	c.front = n
	if c.back == nil {
		c.back = n
	}
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.front = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.back = n.prev
	}
	n.prev, n.next = nil, nil
}
