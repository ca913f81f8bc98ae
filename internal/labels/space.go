package labels

import (
	"fmt"
	"sort"
)

// Space is the canonical label space: class names in sorted order, each
// identified by its position. It is immutable once built.
type Space struct {
	names []string
	index map[string]int
}

// NewSpace sorts and de-duplicates names.
func NewSpace(names []string) (*Space, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("label space needs at least one class")
	}
	sorted := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("empty class name")
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, n := range sorted {
		index[n] = i
	}
	return &Space{names: sorted, index: index}, nil
}

func (s *Space) Len() int { return len(s.names) }

// Names returns a copy of the ordered class names.
func (s *Space) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Space) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Space) Name(i int) (string, bool) {
	if i < 0 || i >= len(s.names) {
		return "", false
	}
	return s.names[i], true
}

func (s *Space) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}
