// Package selection holds index-based row sets. Membership is always by
// original row index, never by row value, so duplicate rows stay distinct.
package selection

import (
	"encoding/json"
	"sort"
)

// IndexSet is a set of row indices. The zero value is an empty set ready to use.
type IndexSet struct {
	m map[int]struct{}
}

// Of builds a set from the given indices. Negative indices are ignored.
func Of(indices ...int) IndexSet {
	s := IndexSet{m: make(map[int]struct{}, len(indices))}
	for _, i := range indices {
		if i >= 0 {
			s.m[i] = struct{}{}
		}
	}
	return s
}

// Range returns {0, ..., n-1}.
func Range(n int) IndexSet {
	s := IndexSet{m: make(map[int]struct{}, n)}
	for i := 0; i < n; i++ {
		s.m[i] = struct{}{}
	}
	return s
}

// Len returns the number of members.
func (s IndexSet) Len() int {
	return len(s.m)
}

// Has reports membership.
func (s IndexSet) Has(i int) bool {
	_, ok := s.m[i]
	return ok
}

// Add returns s with i added.
func (s IndexSet) Add(i int) IndexSet {
	out := s.Clone()
	if i >= 0 {
		out.m[i] = struct{}{}
	}
	return out
}

// Remove returns s without i.
func (s IndexSet) Remove(i int) IndexSet {
	out := s.Clone()
	delete(out.m, i)
	return out
}

// Union returns s ∪ other.
func (s IndexSet) Union(other IndexSet) IndexSet {
	out := s.Clone()
	for i := range other.m {
		out.m[i] = struct{}{}
	}
	return out
}

// Clone returns an independent copy.
func (s IndexSet) Clone() IndexSet {
	out := IndexSet{m: make(map[int]struct{}, len(s.m))}
	for i := range s.m {
		out.m[i] = struct{}{}
	}
	return out
}

// Sorted lists the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s.m))
	for i := range s.m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Equal reports whether both sets hold the same members.
func (s IndexSet) Equal(other IndexSet) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for i := range s.m {
		if !other.Has(i) {
			return false
		}
	}
	return true
}

// Reindex returns the set as it must look after the rows in deleted were
// removed from the table: members listed in deleted are dropped and every
// other member shifts down by the number of deleted indices below it.
// deleted must be sorted ascending without duplicates.
func (s IndexSet) Reindex(deleted []int) IndexSet {
	out := IndexSet{m: make(map[int]struct{}, len(s.m))}
	for i := range s.m {
		pos := sort.SearchInts(deleted, i)
		if pos < len(deleted) && deleted[pos] == i {
			continue
		}
		out.m[i-pos] = struct{}{}
	}
	return out
}

// Bounded returns the members below n.
func (s IndexSet) Bounded(n int) IndexSet {
	out := IndexSet{m: make(map[int]struct{}, len(s.m))}
	for i := range s.m {
		if i < n {
			out.m[i] = struct{}{}
		}
	}
	return out
}

// MarshalJSON encodes the set as an ascending index list.
func (s IndexSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an index list.
func (s *IndexSet) UnmarshalJSON(data []byte) error {
	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = Of(list...)
	return nil
}
