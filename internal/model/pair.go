package model

import (
	"encoding/json"
	"fmt"
)

// Pair is one key/value entry of a map-shaped store.
// It serializes as a two-element JSON array, so a []Pair keeps the map's order on export.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// MarshalJSON encodes the pair as [key, value].
func (p Pair[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Value})
}

// UnmarshalJSON decodes a [key, value] array.
func (p *Pair[K, V]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair must have exactly 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("failed to decode pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("failed to decode pair value: %w", err)
	}
	return nil
}
