package epub

import (
	"fmt"
	"slices"
)

// Container is an in-memory publication: the package document, resource
// bytes, and the content documents materialized from them. Mutations go
// through Container so that the manifest, spine, resources and navigation
// stay consistent; each mutation either succeeds fully or leaves the
// container unchanged.
//
// A Container is not safe for concurrent use.
type Container struct {
	pkg       *PackageDocument
	resources *ResourceStore
	documents map[string]ContentDocument
	nav       *NavigationDocument

	maxNavDepth int
	obfuscator  FontObfuscator
}

// Create returns an empty container for md.
func Create(md Metadata) (*Container, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return newContainer(NewPackageDocument(md.Clone()), defaultMaxNavDepth), nil
}

func newContainer(pkg *PackageDocument, maxNavDepth int) *Container {
	return &Container{
		pkg:         pkg,
		resources:   NewResourceStore(),
		documents:   make(map[string]ContentDocument),
		maxNavDepth: maxNavDepth,
		obfuscator:  IDPFObfuscator{},
	}
}

// Package returns the package document. Mutating its manifest or spine
// directly bypasses the container's consistency checks.
func (c *Container) Package() *PackageDocument { return c.pkg }

// Metadata returns a copy of the publication metadata.
func (c *Container) Metadata() Metadata { return c.pkg.Metadata.Clone() }

// Manifest returns the manifest. See Package.
func (c *Container) Manifest() *Manifest { return c.pkg.Manifest }

// Spine returns the spine. See Package.
func (c *Container) Spine() *Spine { return c.pkg.Spine }

// UpdateMetadata replaces the metadata after validating it. When the
// identifier changes, obfuscated fonts are re-keyed to the new identifier.
func (c *Container) UpdateMetadata(md Metadata) error {
	if err := md.Validate(); err != nil {
		return err
	}
	md = md.Clone()
	if md.Extra == nil {
		md.Extra = map[string]string{}
	}

	type rekeyed struct {
		r    *Resource
		data []byte
	}
	var pending []rekeyed
	if oldID := c.pkg.Metadata.Identifier; md.Identifier != oldID {
		for _, r := range c.resources.All() {
			if !r.Obfuscated {
				continue
			}
			plain := c.obfuscator.Deobfuscate(r.Data, oldID)
			pending = append(pending, rekeyed{r: r, data: c.obfuscator.Obfuscate(plain, md.Identifier)})
		}
	}

	c.pkg.Metadata = md
	for _, p := range pending {
		p.r.Data = p.data
	}
	return nil
}

// SetFontObfuscator replaces the obfuscator used by ObfuscateFont and
// DeobfuscateFont.
func (c *Container) SetFontObfuscator(o FontObfuscator) { c.obfuscator = o }

// AddManifestItem registers item. If a resource already exists at its href
// it is materialized according to the item's media type.
func (c *Container) AddManifestItem(item ManifestItem) error {
	if item.ID == "" || item.Href == "" || item.MediaType == "" {
		return fmt.Errorf("%w: manifest item needs id, href and media-type", ErrReferentialIntegrity)
	}
	if _, ok := c.pkg.Manifest.Get(item.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}
	if other, ok := c.pkg.Manifest.ByHref(item.Href); ok {
		return fmt.Errorf("%w: %s already declared by %s", ErrDuplicatePath, item.Href, other.ID)
	}

	var doc ContentDocument
	r, hasResource := c.resources.Get(item.Href)
	if hasResource {
		var err error
		if doc, err = newContentDocument(item, r.Path, r.Data, c.maxNavDepth); err != nil {
			return err
		}
	}

	if err := c.pkg.Manifest.Add(item); err != nil {
		return err
	}
	if hasResource {
		r.ID = item.ID
		r.MediaType = item.MediaType
	}
	if doc != nil {
		c.install(doc)
	}
	return nil
}

// RemoveManifestItem unregisters the item with the given id and drops any
// document materialized from it. It fails while the spine references id.
// The resource bytes are kept.
func (c *Container) RemoveManifestItem(id string) error {
	item, ok := c.pkg.Manifest.Get(id)
	if !ok {
		return fmt.Errorf("%w: manifest item %s", ErrNotFound, id)
	}
	if c.pkg.Spine.Contains(id) {
		return fmt.Errorf("%w: manifest item %s is referenced by the spine", ErrReferentialIntegrity, id)
	}
	if err := c.pkg.Manifest.Remove(id); err != nil {
		return err
	}
	if r, ok := c.resources.Get(item.Href); ok {
		c.dropDocument(r.Path)
	}
	return nil
}

// AddResource stores r. If a manifest item declares r's path, r is
// materialized into a content document; bytes that fail to parse are
// rejected and nothing is stored.
func (c *Container) AddResource(r Resource) error {
	key := NormalizePath(r.Path)
	if key == "" {
		return fmt.Errorf("%w: resource has no path", ErrReferentialIntegrity)
	}
	if _, ok := c.resources.byPath[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, key)
	}

	var doc ContentDocument
	if item, ok := c.pkg.Manifest.ByHref(key); ok {
		if r.ID == "" {
			r.ID = item.ID
		}
		if r.MediaType == "" {
			r.MediaType = item.MediaType
		}
		var err error
		if doc, err = newContentDocument(item, key, r.Data, c.maxNavDepth); err != nil {
			return err
		}
	}

	if err := c.resources.Add(r); err != nil {
		return err
	}
	if doc != nil {
		c.install(doc)
	}
	return nil
}

// addRawResource stores r without materializing it.
func (c *Container) addRawResource(r Resource) error {
	return c.resources.Add(r)
}

// RemoveResource deletes the resource at p together with its content
// document. Removing the navigation document clears the navigation.
func (c *Container) RemoveResource(p string) error {
	r, err := c.resources.Remove(p)
	if err != nil {
		return err
	}
	c.dropDocument(r.Path)
	return nil
}

// Resource returns the resource at p; lookups fall back to a
// case-insensitive match.
func (c *Container) Resource(p string) (*Resource, bool) {
	return c.resources.Get(p)
}

// Resources returns all resources in insertion order.
func (c *Container) Resources() []*Resource {
	return c.resources.All()
}

// AddSpineItem appends item to the reading order.
func (c *Container) AddSpineItem(item SpineItem) error {
	return c.InsertSpineItem(c.pkg.Spine.Len(), item)
}

// InsertSpineItem inserts item at index. item.IDRef must name a manifest
// item.
func (c *Container) InsertSpineItem(index int, item SpineItem) error {
	if _, ok := c.pkg.Manifest.Get(item.IDRef); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIDRef, item.IDRef)
	}
	return c.pkg.Spine.Insert(index, item)
}

// RemoveSpineItem removes the spine item referencing idref.
func (c *Container) RemoveSpineItem(idref string) error {
	return c.pkg.Spine.Remove(idref)
}

// RemoveSpineItemAt removes the spine item at index.
func (c *Container) RemoveSpineItemAt(index int) error {
	return c.pkg.Spine.RemoveAt(index)
}

// SetNavigation makes doc the navigation document. A manifest item must
// already declare doc's path; it receives the "nav" property. The previous
// navigation document, if any, stays as a plain XHTML document.
func (c *Container) SetNavigation(doc *NavigationDocument) error {
	item, ok := c.pkg.Manifest.ByHref(doc.Path())
	if !ok {
		return fmt.Errorf("%w: no manifest item for navigation document %s", ErrReferentialIntegrity, doc.Path())
	}
	if item.MediaType != MediaTypeXHTML {
		return fmt.Errorf("%w: navigation document %s has media type %s", ErrReferentialIntegrity, doc.Path(), item.MediaType)
	}
	if doc.MaxDepth <= 0 {
		doc.MaxDepth = c.maxNavDepth
	}
	data, err := doc.Save()
	if err != nil {
		return err
	}

	r, hasResource := c.resources.Get(doc.Path())
	if !hasResource {
		if err := c.resources.Add(Resource{ID: item.ID, Path: doc.Path(), MediaType: item.MediaType, Data: data}); err != nil {
			return err
		}
	} else {
		r.Data = data
		doc.path = r.Path
	}
	doc.id = item.ID
	if !item.HasProperty(PropertyNav) {
		c.pkg.Manifest.setProperties(item.ID, append(item.Properties, PropertyNav))
	}
	c.install(doc)
	return nil
}

// AddContent registers doc's manifest item and resource together. A
// NavigationDocument becomes the navigation document.
func (c *Container) AddContent(doc ContentDocument) error {
	if doc.ID() == "" || doc.Path() == "" {
		return fmt.Errorf("%w: content document needs id and path", ErrReferentialIntegrity)
	}
	if _, ok := c.pkg.Manifest.Get(doc.ID()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID())
	}
	if other, ok := c.pkg.Manifest.ByHref(doc.Path()); ok {
		return fmt.Errorf("%w: %s already declared by %s", ErrDuplicatePath, doc.Path(), other.ID)
	}
	if _, ok := c.resources.Get(doc.Path()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, doc.Path())
	}

	item := ManifestItem{ID: doc.ID(), Href: doc.Path(), MediaType: doc.MediaType()}
	if nav, ok := doc.(*NavigationDocument); ok {
		if nav.MaxDepth <= 0 {
			nav.MaxDepth = c.maxNavDepth
		}
		item.Properties = []string{PropertyNav}
	}
	data, err := doc.Save()
	if err != nil {
		return err
	}

	// id and path were checked above, so neither Add can fail.
	if err := c.pkg.Manifest.Add(item); err != nil {
		return err
	}
	if err := c.resources.Add(Resource{ID: item.ID, Path: item.Href, MediaType: item.MediaType, Data: data}); err != nil {
		return err
	}
	c.install(doc)
	return nil
}

// Navigation returns the navigation document, if any.
func (c *Container) Navigation() (*NavigationDocument, bool) {
	return c.nav, c.nav != nil
}

// Document returns the content document materialized from the resource at p.
func (c *Container) Document(p string) (ContentDocument, bool) {
	r, ok := c.resources.Get(p)
	if !ok {
		return nil, false
	}
	doc, ok := c.documents[r.Path]
	return doc, ok
}

// DocumentByID returns the content document materialized for the manifest
// item id.
func (c *Container) DocumentByID(id string) (ContentDocument, bool) {
	item, ok := c.pkg.Manifest.Get(id)
	if !ok {
		return nil, false
	}
	return c.Document(item.Href)
}

// Documents returns all content documents in resource order.
func (c *Container) Documents() []ContentDocument {
	var out []ContentDocument
	for _, r := range c.resources.All() {
		if doc, ok := c.documents[r.Path]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// SyncDocument stores the serialized tree of the document at p as its
// resource bytes.
func (c *Container) SyncDocument(p string) error {
	r, ok := c.resources.Get(p)
	if !ok {
		return fmt.Errorf("%w: resource %s", ErrNotFound, p)
	}
	doc, ok := c.documents[r.Path]
	if !ok {
		return fmt.Errorf("%w: no content document at %s", ErrNotFound, p)
	}
	data, err := doc.Save()
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// ObfuscateFont obfuscates the font resource at p with the container's
// FontObfuscator, keyed by the publication identifier.
func (c *Container) ObfuscateFont(p string) error {
	return c.toggleFont(p, true)
}

// DeobfuscateFont restores the font resource at p.
func (c *Container) DeobfuscateFont(p string) error {
	return c.toggleFont(p, false)
}

func (c *Container) toggleFont(p string, obfuscate bool) error {
	r, ok := c.resources.Get(p)
	if !ok {
		return fmt.Errorf("%w: resource %s", ErrNotFound, p)
	}
	if !IsFontMediaType(r.MediaType) {
		return fmt.Errorf("resource %s is %s, not a font", r.Path, r.MediaType)
	}
	if r.Obfuscated == obfuscate {
		return nil
	}
	id := c.pkg.Metadata.Identifier
	if obfuscate {
		r.Data = c.obfuscator.Obfuscate(r.Data, id)
	} else {
		r.Data = c.obfuscator.Deobfuscate(r.Data, id)
	}
	r.Obfuscated = obfuscate
	return nil
}

// install registers doc, replacing the navigation document if doc is one.
func (c *Container) install(doc ContentDocument) {
	if nav, ok := doc.(*NavigationDocument); ok {
		if c.nav != nil && c.nav.Path() != nav.Path() {
			c.demoteNavigation()
		}
		c.nav = nav
	}
	c.documents[doc.Path()] = doc
}

// demoteNavigation turns the current navigation document into plain XHTML.
func (c *Container) demoteNavigation() {
	old := c.nav
	c.nav = nil
	if item, ok := c.pkg.Manifest.ByHref(old.Path()); ok {
		c.pkg.Manifest.setProperties(item.ID, slices.DeleteFunc(item.Properties, func(p string) bool {
			return p == PropertyNav
		}))
	}
	if r, ok := c.resources.Get(old.Path()); ok {
		if data, err := old.Save(); err == nil {
			r.Data = data
		}
	}
	c.documents[old.Path()] = &old.XHTMLDocument
}

func (c *Container) dropDocument(p string) {
	delete(c.documents, p)
	if c.nav != nil && c.nav.Path() == p {
		c.nav = nil
	}
}
