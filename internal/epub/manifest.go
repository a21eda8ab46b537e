package epub

import (
	"fmt"
	"slices"
)

// Manifest item properties with package-level meaning.
const (
	PropertyNav        = "nav"
	PropertyCoverImage = "cover-image"
)

// ManifestItem describes one publication resource.
type ManifestItem struct {
	ID           string
	Href         string
	MediaType    string
	Properties   []string
	Fallback     string
	MediaOverlay string
}

// HasProperty reports whether p is among the item's properties.
func (it ManifestItem) HasProperty(p string) bool {
	return slices.Contains(it.Properties, p)
}

func (it ManifestItem) clone() ManifestItem {
	it.Properties = slices.Clone(it.Properties)
	return it
}

// Manifest is the set of publication resources keyed by id. Iteration
// follows insertion order.
type Manifest struct {
	items map[string]ManifestItem
	order []string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{items: make(map[string]ManifestItem)}
}

// Add inserts item. The id must be non-empty and unused.
func (m *Manifest) Add(item ManifestItem) error {
	if item.ID == "" {
		return fmt.Errorf("%w: manifest item has no id", ErrReferentialIntegrity)
	}
	if _, ok := m.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}
	m.items[item.ID] = item.clone()
	m.order = append(m.order, item.ID)
	return nil
}

// Get returns the item with the given id.
func (m *Manifest) Get(id string) (ManifestItem, bool) {
	item, ok := m.items[id]
	if !ok {
		return ManifestItem{}, false
	}
	return item.clone(), true
}

// ByHref returns the first item whose href equals href after path
// normalization.
func (m *Manifest) ByHref(href string) (ManifestItem, bool) {
	key := NormalizePath(href)
	for _, id := range m.order {
		if NormalizePath(m.items[id].Href) == key {
			return m.items[id].clone(), true
		}
	}
	return ManifestItem{}, false
}

// Remove deletes the item with the given id.
func (m *Manifest) Remove(id string) error {
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: manifest item %s", ErrNotFound, id)
	}
	delete(m.items, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

// Items returns copies of all items in insertion order.
func (m *Manifest) Items() []ManifestItem {
	out := make([]ManifestItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id].clone())
	}
	return out
}

// Len returns the number of items.
func (m *Manifest) Len() int {
	return len(m.order)
}

// setProperties replaces the properties of an existing item.
func (m *Manifest) setProperties(id string, props []string) {
	item, ok := m.items[id]
	if !ok {
		return
	}
	item.Properties = props
	m.items[id] = item
}
