package core

import (
	"bytes"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SeriesMap is an insertion-ordered map from project head to one value per
// period. Head order is significant for display and export, so it survives
// JSON round trips. The zero value is an empty map ready to use.
type SeriesMap[T any] struct {
	om *orderedmap.OrderedMap[string, []T]
}

func (m *SeriesMap[T]) init() {
	if m.om == nil {
		m.om = orderedmap.New[string, []T]()
	}
}

// Keys returns the heads in insertion order.
func (m SeriesMap[T]) Keys() []string {
	out := make([]string, 0, m.Len())
	if m.om == nil {
		return out
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (m SeriesMap[T]) Len() int {
	if m.om == nil {
		return 0
	}
	return m.om.Len()
}

func (m SeriesMap[T]) Has(head string) bool {
	_, ok := m.Get(head)
	return ok
}

// Get returns the series for head. The slice is shared with the map.
func (m SeriesMap[T]) Get(head string) ([]T, bool) {
	if m.om == nil {
		return nil, false
	}
	return m.om.Get(head)
}

// Set replaces the series for head, appending head to the order when new.
func (m *SeriesMap[T]) Set(head string, series []T) {
	m.init()
	m.om.Set(head, series)
}

func (m *SeriesMap[T]) Delete(head string) {
	if m.om != nil {
		m.om.Delete(head)
	}
}

// Clone returns a deep copy.
func (m SeriesMap[T]) Clone() SeriesMap[T] {
	var out SeriesMap[T]
	if m.om == nil {
		return out
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		dst := make([]T, len(pair.Value))
		copy(dst, pair.Value)
		out.Set(pair.Key, dst)
	}
	return out
}

func (m SeriesMap[T]) MarshalJSON() ([]byte, error) {
	if m.om == nil {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}

// UnmarshalJSON accepts an object of arrays; null yields an empty map and a
// null series an empty one.
func (m *SeriesMap[T]) UnmarshalJSON(data []byte) error {
	*m = SeriesMap[T]{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("series map: expected object")
	}
	m.init()
	if err := m.om.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("series map: %w", err)
	}
	for pair := m.om.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			pair.Value = []T{}
		}
	}
	return nil
}
