// Package recency provides a bounded, thread-safe store that keeps the most
// recently written value per key and evicts the least recently written key
// when full.
package recency

import "sync"

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 5

// nil handle in the arena.
const none = -1

// Entry is one key/value pair returned by Snapshot.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type node struct {
	key        string
	value      string
	prev, next int
}

// Cache is an LRU keyed by string.
//
// Nodes live in a fixed arena and link to each other by index, so the list
// never holds pointers into itself and nothing outside the Cache can observe
// a node. head is the most recently used entry, tail the least.
type Cache struct {
	mu    sync.Mutex
	nodes []node
	index map[string]int
	free  []int
	head  int
	tail  int
	cap   int
}

// New returns an empty cache holding at most capacity keys.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	free := make([]int, capacity)
	for i := range free {
		free[i] = capacity - 1 - i
	}
	return &Cache{
		nodes: make([]node, capacity),
		index: make(map[string]int, capacity),
		free:  free,
		head:  none,
		tail:  none,
		cap:   capacity,
	}
}

// Put stores value under key and marks key most recently used. Adding a new
// key to a full cache evicts the least recently used key first.
func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.nodes[i].value = value
		c.unlink(i)
		c.pushFront(i)
		return
	}

	if len(c.free) == 0 {
		c.evict()
	}

	i := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.nodes[i] = node{key: key, value: value, prev: none, next: none}
	c.index[key] = i
	c.pushFront(i)
}

// Snapshot returns a copy of every entry, most recently used first. It does
// not change recency order.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.index))
	for i := c.head; i != none; i = c.nodes[i].next {
		out = append(out, Entry{Key: c.nodes[i].key, Value: c.nodes[i].value})
	}
	return out
}

// Len returns the number of keys currently stored.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the maximum number of keys. It never changes.
func (c *Cache) Capacity() int {
	return c.cap
}

func (c *Cache) evict() {
	i := c.tail
	c.unlink(i)
	delete(c.index, c.nodes[i].key)
	c.nodes[i] = node{}
	c.free = append(c.free, i)
}

func (c *Cache) unlink(i int) {
	n := &c.nodes[i]
	if n.prev != none {
		c.nodes[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != none {
		c.nodes[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = none, none
}

func (c *Cache) pushFront(i int) {
	n := &c.nodes[i]
	n.prev = none
	n.next = c.head
	if c.head != none {
		c.nodes[c.head].prev = i
	}
	c.head = i
	if c.tail == none {
		c.tail = i
	}
}
