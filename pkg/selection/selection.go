// Package selection holds the products chosen in the picker.
package selection

import "github.com/Sternrassler/catalog-picker/pkg/catalog"

// Set is a set of products keyed by product ID that remembers the order in
// which products were selected. The zero value is not usable; call New.
type Set struct {
	selected map[int64]catalog.Product
	order    []int64
}

// New creates an empty selection set.
func New() *Set {
	return &Set{selected: make(map[int64]catalog.Product)}
}

// Toggle adds p if it is not selected and removes it otherwise. It returns
// true when p is selected afterwards.
func (s *Set) Toggle(p catalog.Product) bool {
	if _, ok := s.selected[p.ID]; ok {
		delete(s.selected, p.ID)
		for i, id := range s.order {
			if id == p.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return false
	}

	s.selected[p.ID] = p.Clone()
	s.order = append(s.order, p.ID)
	return true
}

// IsSelected reports whether the product with id is selected.
func (s *Set) IsSelected(id int64) bool {
	_, ok := s.selected[id]
	return ok
}

// Confirm returns the selected products in the order they were selected.
// The set is left unchanged.
func (s *Set) Confirm() []catalog.Product {
	out := make([]catalog.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.selected[id].Clone())
	}
	return out
}

// Len returns the number of selected products.
func (s *Set) Len() int {
	return len(s.order)
}

// Clear deselects everything.
func (s *Set) Clear() {
	s.selected = make(map[int64]catalog.Product)
	s.order = nil
}
