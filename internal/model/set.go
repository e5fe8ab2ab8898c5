package model

import "encoding/json"

// OrderedSet is a set of strings that remembers insertion order.
// It serializes as a plain JSON list so exported documents stay round-trippable.
// The zero value is an empty set ready to use.
type OrderedSet struct {
	items []string
	index map[string]struct{}
}

// NewOrderedSet returns a set containing items in the given order, duplicates dropped.
func NewOrderedSet(items ...string) *OrderedSet {
	s := &OrderedSet{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was not already present.
func (s *OrderedSet) Add(item string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// Has reports whether item is present.
func (s *OrderedSet) Has(item string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[item]
	return ok
}

// Len returns the number of elements.
func (s *OrderedSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the elements in insertion order.
func (s *OrderedSet) Items() []string {
	if s == nil || len(s.items) == 0 {
		return []string{}
	}
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy of the set.
func (s *OrderedSet) Clone() *OrderedSet {
	if s == nil {
		return &OrderedSet{}
	}
	return NewOrderedSet(s.items...)
}

// MarshalJSON encodes the set as a JSON list.
func (s *OrderedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

// UnmarshalJSON decodes a JSON list, dropping duplicates.
func (s *OrderedSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = OrderedSet{}
	for _, item := range items {
		s.Add(item)
	}
	return nil
}
