package epub

import (
	"fmt"
	"slices"
)

// Collection groups package resources under a role, e.g. "index" or
// "dictionary".
type Collection struct {
	Role  string
	Links []string
}

// AddLink appends href unless already linked. It reports whether href was
// added.
func (c *Collection) AddLink(href string) bool {
	if slices.Contains(c.Links, href) {
		return false
	}
	c.Links = append(c.Links, href)
	return true
}

// RemoveLink deletes href from the collection.
func (c *Collection) RemoveLink(href string) error {
	i := slices.Index(c.Links, href)
	if i < 0 {
		return fmt.Errorf("%w: link %s in collection %s", ErrNotFound, href, c.Role)
	}
	c.Links = slices.Delete(c.Links, i, i+1)
	return nil
}

func (c Collection) clone() Collection {
	c.Links = slices.Clone(c.Links)
	return c
}

// AddCollection adds c. Roles are unique within a package.
func (p *PackageDocument) AddCollection(c Collection) error {
	if c.Role == "" {
		return fmt.Errorf("%w: collection has no role", ErrReferentialIntegrity)
	}
	if _, ok := p.Collection(c.Role); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, c.Role)
	}
	c = c.clone()
	p.collections = append(p.collections, &c)
	return nil
}

// Collection returns the collection with the given role. The returned
// pointer stays valid until the collection is removed.
func (p *PackageDocument) Collection(role string) (*Collection, bool) {
	for _, c := range p.collections {
		if c.Role == role {
			return c, true
		}
	}
	return nil, false
}

// RemoveCollection deletes the collection with the given role.
func (p *PackageDocument) RemoveCollection(role string) error {
	i := slices.IndexFunc(p.collections, func(c *Collection) bool { return c.Role == role })
	if i < 0 {
		return fmt.Errorf("%w: collection %s", ErrNotFound, role)
	}
	p.collections = slices.Delete(p.collections, i, i+1)
	return nil
}

// Collections returns copies of all collections in document order.
func (p *PackageDocument) Collections() []Collection {
	out := make([]Collection, len(p.collections))
	for i, c := range p.collections {
		out[i] = c.clone()
	}
	return out
}
