package epub

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
)

// NavType names one of the three navigation lists of a navigation document.
type NavType string

const (
	NavTOC       NavType = "toc"
	NavPageList  NavType = "page-list"
	NavLandmarks NavType = "landmarks"
)

// NavTypes lists the navigation types in document order.
var NavTypes = []NavType{NavTOC, NavPageList, NavLandmarks}

func (t NavType) heading() string {
	switch t {
	case NavTOC:
		return "Table of Contents"
	case NavPageList:
		return "List of Pages"
	default:
		return "Landmarks"
	}
}

// NavPoint is one entry of a navigation list.
type NavPoint struct {
	Text     string
	Href     string
	ID       string
	Type     string // epub:type of the link, e.g. "bodymatter" in landmarks
	Children []NavPoint
}

// NavigationTree holds the toc, page-list and landmarks lists.
type NavigationTree struct {
	TOC       []NavPoint
	PageList  []NavPoint
	Landmarks []NavPoint
}

func (t *NavigationTree) list(typ NavType) (*[]NavPoint, error) {
	switch typ {
	case NavTOC:
		return &t.TOC, nil
	case NavPageList:
		return &t.PageList, nil
	case NavLandmarks:
		return &t.Landmarks, nil
	default:
		return nil, fmt.Errorf("unknown navigation type %q", typ)
	}
}

// Points returns the root points of the given list.
func (t *NavigationTree) Points(typ NavType) []NavPoint {
	l, err := t.list(typ)
	if err != nil {
		return nil
	}
	return *l
}

// Add appends p to the root of the given list.
func (t *NavigationTree) Add(typ NavType, p NavPoint) error {
	l, err := t.list(typ)
	if err != nil {
		return err
	}
	*l = append(*l, p)
	return nil
}

// Remove deletes the first point with the given id, searching depth-first.
// Its children are removed with it.
func (t *NavigationTree) Remove(typ NavType, id string) error {
	l, err := t.list(typ)
	if err != nil {
		return err
	}
	points, ok := removePoint(*l, id)
	if !ok {
		return fmt.Errorf("%w: nav point %s in %s", ErrNotFound, id, typ)
	}
	*l = points
	return nil
}

func removePoint(points []NavPoint, id string) ([]NavPoint, bool) {
	for i := range points {
		if points[i].ID == id {
			return slices.Delete(points, i, i+1), true
		}
		if children, ok := removePoint(points[i].Children, id); ok {
			points[i].Children = children
			return points, true
		}
	}
	return points, false
}

// Depth returns the nesting depth of the given list: 0 when empty, 1 when
// flat.
func (t *NavigationTree) Depth(typ NavType) int {
	return depth(t.Points(typ))
}

func depth(points []NavPoint) int {
	d := 0
	for _, p := range points {
		d = max(d, 1+depth(p.Children))
	}
	return d
}

// NavigationDocument is the XHTML document carrying the navigation lists.
// Tree is parsed on Load and written back into the markup on Save.
type NavigationDocument struct {
	XHTMLDocument
	Tree     NavigationTree
	MaxDepth int
}

// NewNavigationDocument returns a navigation document with an empty body.
func NewNavigationDocument(id, p string) *NavigationDocument {
	d := &NavigationDocument{XHTMLDocument: *NewXHTMLDocument(id, p)}
	d.tree = navigationSkeleton()
	return d
}

func navigationSkeleton() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDeclaration)
	doc.CreateDirective("DOCTYPE html")
	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", NamespaceXHTML)
	html.CreateAttr("xmlns:epub", NamespaceOPS)
	html.CreateElement("head").CreateElement("title").SetText("Navigation")
	html.CreateElement("body")
	return doc
}

func (d *NavigationDocument) Kind() DocumentKind { return KindNavigation }

func (d *NavigationDocument) maxDepth() int {
	if d.MaxDepth <= 0 {
		return defaultMaxNavDepth
	}
	return d.MaxDepth
}

// Load parses data and its navigation lists. On error the document is
// unchanged.
func (d *NavigationDocument) Load(data []byte) error {
	doc, err := readXML(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedDocument, d.path, err)
	}
	tree, err := parseNavigation(doc.Root(), d.maxDepth())
	if err != nil {
		return fmt.Errorf("%s: %w", d.path, err)
	}
	d.tree = doc
	d.Tree = tree
	return nil
}

// Save rebuilds the navigation lists in the markup and serializes it.
func (d *NavigationDocument) Save() ([]byte, error) {
	if d.tree == nil {
		return nil, fmt.Errorf("%w: %s: not loaded", ErrMalformedDocument, d.path)
	}
	for _, typ := range NavTypes {
		if n := d.Tree.Depth(typ); n > d.maxDepth() {
			return nil, fmt.Errorf("%w: %s depth %d exceeds %d", ErrNavigationTooDeep, typ, n, d.maxDepth())
		}
	}
	if err := writeNavigation(d.tree.Root(), d.Tree); err != nil {
		return nil, fmt.Errorf("%s: %w", d.path, err)
	}
	return d.save(true)
}

// Query returns a read-only goquery snapshot of the markup with the
// navigation lists rebuilt from Tree.
func (d *NavigationDocument) Query() (*goquery.Document, error) {
	return snapshot(d.path, d.Save)
}

// References collects stylesheet, image and hyperlink targets, including
// the links of the current navigation lists.
func (d *NavigationDocument) References() (References, error) {
	doc, err := d.Query()
	if err != nil {
		return References{}, err
	}
	return collectReferences(doc, path.Dir(d.path)), nil
}

// hasEpubType reports whether el carries typ among its epub:type tokens.
func hasEpubType(el *etree.Element, typ string) bool {
	return slices.Contains(strings.Fields(epubType(el)), typ)
}

func epubType(el *etree.Element) string {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == "type" && (a.Space == "epub" || (a.Space != "" && a.NamespaceURI() == NamespaceOPS)) {
			return a.Value
		}
	}
	return ""
}

func findNav(root *etree.Element, typ NavType) *etree.Element {
	for _, nav := range allElements(root, "nav") {
		if hasEpubType(nav, string(typ)) {
			return nav
		}
	}
	return nil
}

func parseNavigation(root *etree.Element, maxDepth int) (NavigationTree, error) {
	var tree NavigationTree
	for _, typ := range NavTypes {
		nav := findNav(root, typ)
		if nav == nil {
			continue
		}
		ol := firstElement(nav, "ol")
		if ol == nil {
			continue
		}
		points, err := parseNavList(ol, 1, maxDepth)
		if err != nil {
			return NavigationTree{}, err
		}
		l, _ := tree.list(typ)
		*l = points
	}
	return tree, nil
}

func parseNavList(ol *etree.Element, level, maxDepth int) ([]NavPoint, error) {
	if level > maxDepth {
		return nil, fmt.Errorf("%w: more than %d levels", ErrNavigationTooDeep, maxDepth)
	}
	var points []NavPoint
	for _, li := range childElements(ol, "li") {
		a := li.SelectElement("a")
		if a == nil {
			continue
		}
		p := NavPoint{
			Text: textContent(a),
			Href: attr(a, "href"),
			ID:   attr(a, "id"),
			Type: epubType(a),
		}
		if sub := li.SelectElement("ol"); sub != nil {
			children, err := parseNavList(sub, level+1, maxDepth)
			if err != nil {
				return nil, err
			}
			p.Children = children
		}
		points = append(points, p)
	}
	return points, nil
}

// writeNavigation replaces the lists of existing nav elements and appends
// nav elements for non-empty lists that have none.
func writeNavigation(root *etree.Element, tree NavigationTree) error {
	ensureNamespace(root, "epub", NamespaceOPS)
	for _, typ := range NavTypes {
		points := tree.Points(typ)
		nav := findNav(root, typ)
		if nav != nil {
			for _, ol := range allElements(nav, "ol") {
				if parent := ol.Parent(); parent != nil {
					parent.RemoveChild(ol)
				}
			}
			if len(points) > 0 {
				buildNavList(nav.CreateElement("ol"), points)
			}
			continue
		}
		if len(points) == 0 {
			continue
		}
		body := firstElement(root, "body")
		if body == nil {
			return fmt.Errorf("%w: no body element for %s nav", ErrMalformedDocument, typ)
		}
		nav = body.CreateElement("nav")
		nav.CreateAttr("epub:type", string(typ))
		nav.CreateElement("h2").SetText(typ.heading())
		buildNavList(nav.CreateElement("ol"), points)
	}
	return nil
}

func buildNavList(ol *etree.Element, points []NavPoint) {
	for _, p := range points {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", p.Href)
		setAttrIfSet(a, "id", p.ID)
		setAttrIfSet(a, "epub:type", p.Type)
		a.SetText(p.Text)
		if len(p.Children) > 0 {
			buildNavList(li.CreateElement("ol"), p.Children)
		}
	}
}
