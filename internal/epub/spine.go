package epub

import (
	"fmt"
	"slices"
)

// Page progression directions.
const (
	DirectionLTR = "ltr"
	DirectionRTL = "rtl"
)

// SpineItem is one entry of the reading order.
type SpineItem struct {
	IDRef      string
	Linear     bool
	ID         string
	Properties []string
}

// NewSpineItem returns a linear item referencing idref.
func NewSpineItem(idref string) SpineItem {
	return SpineItem{IDRef: idref, Linear: true}
}

func (s SpineItem) clone() SpineItem {
	s.Properties = slices.Clone(s.Properties)
	return s
}

// Spine is the ordered reading sequence. It does not know about the
// manifest; Container checks that idrefs resolve.
type Spine struct {
	direction string
	items     []SpineItem
}

// NewSpine returns an empty left-to-right spine.
func NewSpine() *Spine {
	return &Spine{direction: DirectionLTR}
}

// Direction returns the page progression direction.
func (s *Spine) Direction() string {
	return s.direction
}

// SetDirection sets the page progression direction to "ltr" or "rtl".
func (s *Spine) SetDirection(dir string) error {
	switch dir {
	case DirectionLTR, DirectionRTL:
		s.direction = dir
		return nil
	default:
		return fmt.Errorf("invalid page progression direction %q", dir)
	}
}

// Items returns a copy of the reading order.
func (s *Spine) Items() []SpineItem {
	out := make([]SpineItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone()
	}
	return out
}

// Get returns the item referencing idref and its index.
func (s *Spine) Get(idref string) (SpineItem, int, bool) {
	i := s.index(idref)
	if i < 0 {
		return SpineItem{}, -1, false
	}
	return s.items[i].clone(), i, true
}

// Contains reports whether idref is in the spine.
func (s *Spine) Contains(idref string) bool {
	return s.index(idref) >= 0
}

// Append adds item at the end.
func (s *Spine) Append(item SpineItem) error {
	return s.Insert(len(s.items), item)
}

// Insert adds item at index; index == Len() appends.
func (s *Spine) Insert(index int, item SpineItem) error {
	if item.IDRef == "" {
		return fmt.Errorf("%w: spine item has no idref", ErrReferentialIntegrity)
	}
	if index < 0 || index > len(s.items) {
		return fmt.Errorf("spine index %d out of range [0,%d]", index, len(s.items))
	}
	if s.index(item.IDRef) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateIDRef, item.IDRef)
	}
	s.items = slices.Insert(s.items, index, item.clone())
	return nil
}

// Remove deletes the item referencing idref.
func (s *Spine) Remove(idref string) error {
	i := s.index(idref)
	if i < 0 {
		return fmt.Errorf("%w: spine item %s", ErrNotFound, idref)
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// RemoveAt deletes the item at index.
func (s *Spine) RemoveAt(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: spine index %d", ErrNotFound, index)
	}
	s.items = slices.Delete(s.items, index, index+1)
	return nil
}

// Len returns the number of items.
func (s *Spine) Len() int {
	return len(s.items)
}

func (s *Spine) index(idref string) int {
	return slices.IndexFunc(s.items, func(it SpineItem) bool { return it.IDRef == idref })
}
