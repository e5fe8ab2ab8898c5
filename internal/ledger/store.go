package ledger

import "slices"

// OriginProfileStore is the repository behind every per-origin ledger.
// Implementations must iterate in insertion order so exports are stable.
type OriginProfileStore[T any] interface {
	// Get returns the profile stored for key.
	Get(key string) (T, bool)

	// Put stores profile under key. A new key is appended to the iteration order;
	// an existing key keeps its position.
	Put(key string, profile T)

	// Delete removes key and reports whether it was present.
	Delete(key string) bool

	// Len returns the number of stored profiles.
	Len() int

	// Range calls fn for each profile in insertion order until fn returns false.
	Range(fn func(key string, profile T) bool)

	// Clear removes every profile.
	Clear()
}

// MemoryStore is an insertion-ordered in-memory OriginProfileStore.
// The zero value is ready to use.
type MemoryStore[T any] struct {
	items map[string]T
	order []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{items: make(map[string]T)}
}

// Get implements OriginProfileStore.
func (s *MemoryStore[T]) Get(key string) (T, bool) {
	v, ok := s.items[key]
	return v, ok
}

// Put implements OriginProfileStore.
func (s *MemoryStore[T]) Put(key string, profile T) {
	if s.items == nil {
		s.items = make(map[string]T)
	}
	if _, ok := s.items[key]; !ok {
		s.order = append(s.order, key)
	}
	s.items[key] = profile
}

// Delete implements OriginProfileStore.
func (s *MemoryStore[T]) Delete(key string) bool {
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	if i := slices.Index(s.order, key); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Len implements OriginProfileStore.
func (s *MemoryStore[T]) Len() int {
	return len(s.items)
}

// Range implements OriginProfileStore.
func (s *MemoryStore[T]) Range(fn func(key string, profile T) bool) {
	for _, key := range s.order {
		if !fn(key, s.items[key]) {
			return
		}
	}
}

// Clear implements OriginProfileStore.
func (s *MemoryStore[T]) Clear() {
	s.items = make(map[string]T)
	s.order = nil
}

// Keys returns the stored keys in insertion order.
func Keys[T any](s OriginProfileStore[T]) []string {
	keys := make([]string, 0, s.Len())
	s.Range(func(key string, _ T) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
