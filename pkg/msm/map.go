package msm

import (
	"encoding/json"
	"sort"
)

// Dated is anything placed on the timeline
type Dated interface {
	When() float64
}

// Map is a timeline of entries kept sorted by date; entries at equal dates keep insertion order
type Map[T Dated] struct {
	entries []T
}

// NewMap creates an empty map
func NewMap[T Dated]() *Map[T] {
	return &Map[T]{}
}

// Add inserts e after every entry dated at or before it
func (m *Map[T]) Add(e T) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].When() > e.When()
	})
	m.entries = append(m.entries, e)
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
}

// InsertAt places e at index i, ignoring date order; callers must keep the order valid
func (m *Map[T]) InsertAt(i int, e T) {
	if i < 0 {
		i = 0
	}
	if i >= len(m.entries) {
		m.entries = append(m.entries, e)
		return
	}
	m.entries = append(m.entries, e)
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
}

// Len returns the number of entries
func (m *Map[T]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the entries in date order. The slice must not be modified.
func (m *Map[T]) Entries() []T {
	if m == nil {
		return nil
	}
	return m.entries
}

// At returns the i-th entry
func (m *Map[T]) At(i int) T {
	return m.entries[i]
}

// Last returns the latest entry
func (m *Map[T]) Last() (T, bool) {
	var zero T
	if m.Len() == 0 {
		return zero, false
	}
	return m.entries[len(m.entries)-1], true
}

// LastBefore returns the latest entry dated at or before date
func (m *Map[T]) LastBefore(date float64) (T, bool) {
	return m.LastMatching(date, func(T) bool { return true })
}

// LastMatching returns the latest entry dated at or before date that satisfies keep
func (m *Map[T]) LastMatching(date float64, keep func(T) bool) (T, bool) {
	var zero T
	if m == nil {
		return zero, false
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.When() <= date && keep(e) {
			return e, true
		}
	}
	return zero, false
}

// Between returns the entries dated in [from, to)
func (m *Map[T]) Between(from, to float64) []T {
	var out []T
	for _, e := range m.Entries() {
		if d := e.When(); d >= from && d < to {
			out = append(out, e)
		}
	}
	return out
}

// IndexOf returns the position of the first entry satisfying match or -1
func (m *Map[T]) IndexOf(match func(T) bool) int {
	for i, e := range m.Entries() {
		if match(e) {
			return i
		}
	}
	return -1
}

// Remove deletes every entry satisfying match and returns how many were removed
func (m *Map[T]) Remove(match func(T) bool) int {
	if m == nil {
		return 0
	}
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	var zero T
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = zero
	}
	m.entries = kept
	return removed
}

// Sort restores date order after entries were re-dated in place
func (m *Map[T]) Sort() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].When() < m.entries[j].When()
	})
}

// MarshalJSON writes the entries as an array
func (m *Map[T]) MarshalJSON() ([]byte, error) {
	if m == nil || m.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.entries)
}
