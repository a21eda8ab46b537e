package epub

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Resource is a file of the publication. Path is relative to the package
// document directory and matches the href of its manifest item.
type Resource struct {
	ID        string
	Path      string
	MediaType string
	Data      []byte
	// Obfuscated is set while Data holds IDPF-obfuscated font bytes.
	Obfuscated bool
}

// NormalizePath turns p into the canonical storage key: forward slashes,
// NFC, no leading "./", cleaned of "." segments.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = norm.NFC.String(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// ResourceStore holds resource bytes keyed by normalized path. Iteration
// follows insertion order.
type ResourceStore struct {
	byPath map[string]*Resource
	order  []string
}

// NewResourceStore returns an empty store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{byPath: make(map[string]*Resource)}
}

// Add stores r under its normalized path.
func (s *ResourceStore) Add(r Resource) error {
	key := NormalizePath(r.Path)
	if key == "" {
		return fmt.Errorf("%w: resource has no path", ErrReferentialIntegrity)
	}
	if _, ok := s.byPath[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, key)
	}
	r.Path = key
	s.byPath[key] = &r
	s.order = append(s.order, key)
	return nil
}

// Get looks p up by exact normalized path, then case-insensitively.
func (s *ResourceStore) Get(p string) (*Resource, bool) {
	key := s.key(p)
	if key == "" {
		return nil, false
	}
	return s.byPath[key], true
}

// Remove deletes the resource at p and returns it.
func (s *ResourceStore) Remove(p string) (*Resource, error) {
	key := s.key(p)
	if key == "" {
		return nil, fmt.Errorf("%w: resource %s", ErrNotFound, p)
	}
	r := s.byPath[key]
	delete(s.byPath, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return r, nil
}

// All returns the resources in insertion order.
func (s *ResourceStore) All() []*Resource {
	out := make([]*Resource, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byPath[k])
	}
	return out
}

// Len returns the number of resources.
func (s *ResourceStore) Len() int {
	return len(s.order)
}

// key resolves p to the stored key, or "" when absent.
func (s *ResourceStore) key(p string) string {
	key := NormalizePath(p)
	if _, ok := s.byPath[key]; ok {
		return key
	}
	for _, k := range s.order {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return ""
}
