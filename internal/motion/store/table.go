package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Table is a thread-safe, in-memory map of records keyed by a string
// (an email for users, an eventId for events). Listing follows insertion order.
type Table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[string]T)}
}

// Put stores item under key. Overwriting keeps the original position.
func (t *Table[T]) Put(key string, item T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[key]; !exists {
		t.order = append(t.order, key)
	}
	t.items[key] = item
}

// PutIfAbsent stores item only when key is unused and reports whether it did.
func (t *Table[T]) PutIfAbsent(key string, item T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[key]; exists {
		return false
	}
	t.order = append(t.order, key)
	t.items[key] = item
	return true
}

// Get returns the item for key.
func (t *Table[T]) Get(key string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[key]
	return item, ok
}

// Update applies fn to the item stored under key while holding the write
// lock. It reports false without calling fn when key is missing.
func (t *Table[T]) Update(key string, fn func(item *T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[key]
	if !ok {
		return false
	}
	fn(&item)
	t.items[key] = item
	return true
}

// Delete removes key and reports whether it existed.
func (t *Table[T]) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[key]; !exists {
		return false
	}
	delete(t.items, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all items in insertion order.
func (t *Table[T]) List() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.items[k])
	}
	return out
}

// Len returns the number of items.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Reset removes every item.
func (t *Table[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]T)
	t.order = nil
}

// Snapshot returns a copy of all items keyed by their key.
func (t *Table[T]) Snapshot() map[string]T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]T, len(t.items))
	for k, v := range t.items {
		out[k] = v
	}
	return out
}

// Load replaces the contents with snapshot. Keys are sorted so listing is
// deterministic after a load.
func (t *Table[T]) Load(snapshot map[string]T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]T, len(snapshot))
	t.order = make([]string, 0, len(snapshot))
	for k, v := range snapshot {
		t.items[k] = v
		t.order = append(t.order, k)
	}
	sort.Strings(t.order)
}

// MarshalJSON encodes the table as a JSON object.
func (t *Table[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// UnmarshalJSON replaces the contents from a JSON object.
func (t *Table[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[string]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	t.Load(snapshot)
	return nil
}

// Clock is a wall clock that can be shifted forward for time-dependent
// twin behavior such as token expiry.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the shifted time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance shifts the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset clears the offset.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current shift.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
