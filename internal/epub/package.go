package epub

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	defaultVersion          = "3.0"
	defaultUniqueIdentifier = "pub-id"
	propertyModified        = "dcterms:modified"
)

// PackageDocument is the OPF package: metadata, manifest, spine and
// collections.
type PackageDocument struct {
	Version          string
	UniqueIdentifier string // id of the dc:identifier holding Metadata.Identifier
	Dir              string // optional base text direction

	Metadata Metadata
	Manifest *Manifest
	Spine    *Spine

	collections []*Collection
}

// NewPackageDocument returns an empty EPUB 3.0 package holding md.
func NewPackageDocument(md Metadata) *PackageDocument {
	if md.Extra == nil {
		md.Extra = map[string]string{}
	}
	return &PackageDocument{
		Version:          defaultVersion,
		UniqueIdentifier: defaultUniqueIdentifier,
		Metadata:         md,
		Manifest:         NewManifest(),
		Spine:            NewSpine(),
	}
}

// ParsePackage parses OPF XML. Malformed manifest items, itemrefs and
// collections are skipped; missing required metadata is an error.
func ParsePackage(data []byte) (*PackageDocument, error) {
	return parsePackage(data, zap.NewNop())
}

func parsePackage(data []byte, log *zap.Logger) (*PackageDocument, error) {
	doc, err := readXML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	root := doc.Root()
	if root.Tag != "package" {
		return nil, fmt.Errorf("%w: root element is <%s>, want <package>", ErrMalformedPackage, root.Tag)
	}

	p := NewPackageDocument(Metadata{})
	p.Version = attr(root, "version")
	if p.Version == "" {
		p.Version = defaultVersion
	}
	p.UniqueIdentifier = attr(root, "unique-identifier")
	p.Dir = attr(root, "dir")

	if el := firstElement(root, "metadata"); el != nil {
		p.Metadata = parseMetadata(el, p.UniqueIdentifier)
	}
	if p.UniqueIdentifier == "" {
		p.UniqueIdentifier = defaultUniqueIdentifier
	}
	if err := p.Metadata.Validate(); err != nil {
		return nil, err
	}

	if el := firstElement(root, "manifest"); el != nil {
		parseManifest(el, p.Manifest, log)
	}
	if el := firstElement(root, "spine"); el != nil {
		parseSpine(el, p.Spine, log)
	}
	for _, el := range allElements(root, "collection") {
		c := Collection{Role: attr(el, "role")}
		if c.Role == "" {
			log.Warn("skipping collection without role")
			continue
		}
		for _, link := range childElements(el, "link") {
			if href := attr(link, "href"); href != "" {
				c.AddLink(href)
			}
		}
		if err := p.AddCollection(c); err != nil {
			log.Warn("skipping collection", zap.String("role", c.Role), zap.Error(err))
		}
	}
	return p, nil
}

func isDC(el *etree.Element) bool {
	return el.Space == "dc" || el.NamespaceURI() == NamespaceDC
}

func parseMetadata(el *etree.Element, uniqueID string) Metadata {
	md := Metadata{Extra: map[string]string{}}
	var identifiers []*etree.Element

	var walk func(parent *etree.Element)
	walk = func(parent *etree.Element) {
		for _, c := range parent.ChildElements() {
			text := strings.TrimSpace(textContent(c))
			switch {
			case c.Tag == "dc-metadata" || c.Tag == "x-metadata":
				// OPF 2.0 legacy grouping
				walk(c)
			case isDC(c):
				parseDCElement(&md, c, text, &identifiers)
			case c.Tag == "meta":
				parseMeta(&md, c, text)
			default:
				if text != "" {
					md.Extra[c.Tag] = text
				}
			}
		}
	}
	walk(el)

	for _, id := range identifiers {
		if uniqueID != "" && attr(id, "id") == uniqueID {
			md.Identifier = strings.TrimSpace(textContent(id))
			break
		}
	}
	if md.Identifier == "" && len(identifiers) > 0 {
		md.Identifier = strings.TrimSpace(textContent(identifiers[0]))
	}
	return md
}

func parseDCElement(md *Metadata, c *etree.Element, text string, identifiers *[]*etree.Element) {
	switch c.Tag {
	case "identifier":
		*identifiers = append(*identifiers, c)
	case "title":
		if md.Title == "" {
			md.Title = text
		}
	case "language":
		if md.Language == "" {
			md.Language = text
		}
	case "creator":
		if text != "" {
			md.Creators = append(md.Creators, text)
		}
	case "contributor":
		if text != "" {
			md.Contributors = append(md.Contributors, text)
		}
	case "publisher":
		md.Publisher = text
	case "description":
		md.Description = text
	case "rights":
		md.Rights = text
	case "date":
		t, ok := parseDate(text)
		if !ok {
			return
		}
		if attr(c, "property") == propertyModified || attr(c, "event") == "modification" {
			md.Modified = t
		} else {
			md.PublicationDate = t
		}
	default:
		if text != "" {
			md.Extra[c.Tag] = text
		}
	}
}

func parseMeta(md *Metadata, c *etree.Element, text string) {
	if name := attr(c, "name"); name != "" {
		md.Extra[name] = attr(c, "content")
		return
	}
	prop := attr(c, "property")
	switch {
	case prop == propertyModified:
		if t, ok := parseDate(text); ok {
			md.Modified = t
		}
	case prop != "" && text != "":
		md.Extra[prop] = text
	}
}

func parseManifest(el *etree.Element, m *Manifest, log *zap.Logger) {
	for _, it := range allElements(el, "item") {
		item := ManifestItem{
			ID:           attr(it, "id"),
			Href:         attr(it, "href"),
			MediaType:    attr(it, "media-type"),
			Properties:   tokens(attr(it, "properties")),
			Fallback:     attr(it, "fallback"),
			MediaOverlay: attr(it, "media-overlay"),
		}
		if item.ID == "" || item.Href == "" || item.MediaType == "" {
			log.Warn("skipping incomplete manifest item",
				zap.String("id", item.ID), zap.String("href", item.Href))
			continue
		}
		if err := m.Add(item); err != nil {
			log.Warn("skipping manifest item", zap.String("id", item.ID), zap.Error(err))
		}
	}
}

func parseSpine(el *etree.Element, s *Spine, log *zap.Logger) {
	if err := s.SetDirection(attr(el, "page-progression-direction")); err != nil {
		s.direction = DirectionLTR
	}
	for _, ref := range allElements(el, "itemref") {
		item := SpineItem{
			IDRef:      attr(ref, "idref"),
			Linear:     attr(ref, "linear") != "no",
			ID:         attr(ref, "id"),
			Properties: tokens(attr(ref, "properties")),
		}
		if item.IDRef == "" {
			log.Warn("skipping itemref without idref")
			continue
		}
		if err := s.Append(item); err != nil {
			log.Warn("skipping itemref", zap.String("idref", item.IDRef), zap.Error(err))
		}
	}
}

// Bytes serializes the package as OPF XML. All namespaces are declared on
// the root element.
func (p *PackageDocument) Bytes() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDeclaration)

	root := doc.CreateElement("package")
	root.CreateAttr("xmlns", NamespaceOPF)
	root.CreateAttr("xmlns:opf", NamespaceOPF)
	root.CreateAttr("xmlns:dc", NamespaceDC)
	root.CreateAttr("xmlns:epub", NamespaceOPS)
	root.CreateAttr("version", cmp.Or(p.Version, defaultVersion))
	uid := cmp.Or(p.UniqueIdentifier, defaultUniqueIdentifier)
	root.CreateAttr("unique-identifier", uid)
	setAttrIfSet(root, "dir", p.Dir)

	p.writeMetadata(root.CreateElement("metadata"), uid)

	manifest := root.CreateElement("manifest")
	for _, it := range p.Manifest.Items() {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", it.ID)
		item.CreateAttr("href", it.Href)
		item.CreateAttr("media-type", it.MediaType)
		setAttrIfSet(item, "properties", strings.Join(it.Properties, " "))
		setAttrIfSet(item, "fallback", it.Fallback)
		setAttrIfSet(item, "media-overlay", it.MediaOverlay)
	}

	spine := root.CreateElement("spine")
	spine.CreateAttr("page-progression-direction", cmp.Or(p.Spine.Direction(), DirectionLTR))
	for _, it := range p.Spine.Items() {
		ref := spine.CreateElement("itemref")
		ref.CreateAttr("idref", it.IDRef)
		setAttrIfSet(ref, "id", it.ID)
		if !it.Linear {
			ref.CreateAttr("linear", "no")
		}
		setAttrIfSet(ref, "properties", strings.Join(it.Properties, " "))
	}

	for _, c := range p.collections {
		el := root.CreateElement("collection")
		el.CreateAttr("role", c.Role)
		for _, href := range c.Links {
			el.CreateElement("link").CreateAttr("href", href)
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func (p *PackageDocument) writeMetadata(el *etree.Element, uid string) {
	md := p.Metadata
	id := el.CreateElement("dc:identifier")
	id.CreateAttr("id", uid)
	id.SetText(md.Identifier)
	el.CreateElement("dc:title").SetText(md.Title)
	el.CreateElement("dc:language").SetText(md.Language)
	for _, c := range md.Creators {
		el.CreateElement("dc:creator").SetText(c)
	}
	for _, c := range md.Contributors {
		el.CreateElement("dc:contributor").SetText(c)
	}
	for _, f := range []struct{ tag, value string }{
		{"dc:publisher", md.Publisher},
		{"dc:description", md.Description},
		{"dc:rights", md.Rights},
	} {
		if f.value != "" {
			el.CreateElement(f.tag).SetText(f.value)
		}
	}
	if !md.PublicationDate.IsZero() {
		el.CreateElement("dc:date").SetText(formatDate(md.PublicationDate))
	}
	if !md.Modified.IsZero() {
		date := el.CreateElement("dc:date")
		date.CreateAttr("opf:property", propertyModified)
		date.SetText(formatDate(md.Modified))
	}
	keys := make([]string, 0, len(md.Extra))
	for k := range md.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		meta := el.CreateElement("meta")
		meta.CreateAttr("name", k)
		meta.CreateAttr("content", md.Extra[k])
	}
}
