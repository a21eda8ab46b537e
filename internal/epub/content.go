package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
)

// DocumentKind classifies a materialized content document.
type DocumentKind int

const (
	KindXHTML DocumentKind = iota
	KindSVG
	KindNavigation
)

func (k DocumentKind) String() string {
	switch k {
	case KindXHTML:
		return "xhtml"
	case KindSVG:
		return "svg"
	case KindNavigation:
		return "navigation"
	default:
		return fmt.Sprintf("DocumentKind(%d)", int(k))
	}
}

// ContentDocument is a resource parsed into an editable tree.
type ContentDocument interface {
	ID() string
	Path() string
	MediaType() string
	Kind() DocumentKind
	Load(data []byte) error
	Save() ([]byte, error)
}

// document is the state shared by all content document kinds.
type document struct {
	id        string
	path      string
	mediaType string
	tree      *etree.Document
}

func (d *document) ID() string        { return d.id }
func (d *document) Path() string      { return d.path }
func (d *document) MediaType() string { return d.mediaType }

func (d *document) load(data []byte) error {
	tree, err := readXML(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedDocument, d.path, err)
	}
	d.tree = tree
	return nil
}

func (d *document) save(canonicalEndTags bool) ([]byte, error) {
	if d.tree == nil {
		return nil, fmt.Errorf("%w: %s: not loaded", ErrMalformedDocument, d.path)
	}
	d.tree.WriteSettings.CanonicalEndTags = canonicalEndTags
	return d.tree.WriteToBytes()
}

// XHTMLDocument is an XHTML content document.
type XHTMLDocument struct {
	document
}

// NewXHTMLDocument returns an unloaded XHTML document.
func NewXHTMLDocument(id, p string) *XHTMLDocument {
	return &XHTMLDocument{document{id: id, path: NormalizePath(p), mediaType: MediaTypeXHTML}}
}

func (d *XHTMLDocument) Kind() DocumentKind { return KindXHTML }

// Load replaces the document tree with data.
func (d *XHTMLDocument) Load(data []byte) error { return d.load(data) }

// Save serializes the document tree.
func (d *XHTMLDocument) Save() ([]byte, error) { return d.save(true) }

// Tree returns the document tree for in-place editing. Call
// Container.SyncDocument afterwards to store the edit.
func (d *XHTMLDocument) Tree() *etree.Document { return d.tree }

// Query returns a read-only goquery snapshot of the current tree.
func (d *XHTMLDocument) Query() (*goquery.Document, error) {
	return snapshot(d.path, d.Save)
}

func snapshot(p string, save func() ([]byte, error)) (*goquery.Document, error) {
	data, err := save()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, p, err)
	}
	return doc, nil
}

// References lists local resources referenced by an XHTML document, with
// paths resolved against the document directory.
type References struct {
	Stylesheets []string
	Images      []string
	Links       []string
}

// References collects stylesheet, image and hyperlink targets.
func (d *XHTMLDocument) References() (References, error) {
	doc, err := d.Query()
	if err != nil {
		return References{}, err
	}
	return collectReferences(doc, path.Dir(d.path)), nil
}

func collectReferences(doc *goquery.Document, baseDir string) References {
	var refs References
	collect := func(sel, attrName string, dst *[]string) {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr(attrName)
			if !ok || isRemote(v) {
				return
			}
			if v, _ = splitFragment(v); v == "" {
				return
			}
			*dst = append(*dst, resolvePath(baseDir, v))
		})
	}
	collect("link[rel~='stylesheet']", "href", &refs.Stylesheets)
	collect("img", "src", &refs.Images)
	collect("a", "href", &refs.Links)
	return refs
}

// SVGDocument is an SVG content document.
type SVGDocument struct {
	document
}

// NewSVGDocument returns an unloaded SVG document.
func NewSVGDocument(id, p string) *SVGDocument {
	return &SVGDocument{document{id: id, path: NormalizePath(p), mediaType: MediaTypeSVG}}
}

func (d *SVGDocument) Kind() DocumentKind { return KindSVG }

// Load replaces the document tree with data.
func (d *SVGDocument) Load(data []byte) error { return d.load(data) }

// Save serializes the document tree.
func (d *SVGDocument) Save() ([]byte, error) { return d.save(false) }

// Tree returns the document tree for in-place editing.
func (d *SVGDocument) Tree() *etree.Document { return d.tree }

// ViewBox returns the viewBox attribute of the root svg element.
func (d *SVGDocument) ViewBox() string {
	if d.tree == nil || d.tree.Root() == nil {
		return ""
	}
	return d.tree.Root().SelectAttrValue("viewBox", "")
}

// SetViewBox sets the viewBox attribute of the root svg element.
func (d *SVGDocument) SetViewBox(v string) error {
	if d.tree == nil || d.tree.Root() == nil {
		return fmt.Errorf("%w: %s: not loaded", ErrMalformedDocument, d.path)
	}
	d.tree.Root().CreateAttr("viewBox", v)
	return nil
}

// newContentDocument materializes data according to the manifest item.
// It returns nil for media types that stay opaque resources.
func newContentDocument(item ManifestItem, p string, data []byte, maxNavDepth int) (ContentDocument, error) {
	var doc ContentDocument
	switch {
	case item.MediaType == MediaTypeXHTML && item.HasProperty(PropertyNav):
		nav := NewNavigationDocument(item.ID, p)
		nav.MaxDepth = maxNavDepth
		doc = nav
	case item.MediaType == MediaTypeXHTML:
		doc = NewXHTMLDocument(item.ID, p)
	case item.MediaType == MediaTypeSVG:
		doc = NewSVGDocument(item.ID, p)
	default:
		return nil, nil
	}
	if err := doc.Load(data); err != nil {
		return nil, err
	}
	return doc, nil
}

// resolvePath resolves a relative reference against baseDir, e.g.
// ("text", "../images/a.jpg") -> "images/a.jpg".
func resolvePath(baseDir, rel string) string {
	return NormalizePath(path.Join(baseDir, rel))
}

func splitFragment(href string) (string, string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}

func isRemote(href string) bool {
	return strings.Contains(href, "://") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "data:")
}
