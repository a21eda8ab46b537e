package epub

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/beevik/etree"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8"`

// readXML parses data into a new etree document. HTML named entities are
// accepted since XHTML content commonly uses them without a DTD.
func readXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Entity = xml.HTMLEntity
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errNoRoot
	}
	return doc, nil
}

var errNoRoot = errors.New("document has no root element")

// firstElement returns the first element named local in document order,
// starting at (and including) e. Prefixes are ignored.
func firstElement(e *etree.Element, local string) *etree.Element {
	if e.Tag == local {
		return e
	}
	for _, c := range e.ChildElements() {
		if found := firstElement(c, local); found != nil {
			return found
		}
	}
	return nil
}

// allElements returns every element named local below e in document order.
func allElements(e *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, c := range el.ChildElements() {
			if c.Tag == local {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// childElements returns the direct children of e named local.
func childElements(e *etree.Element, local string) []*etree.Element {
	return e.SelectElements(local)
}

// textContent concatenates all character data below e.
func textContent(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, t := range el.Child {
			switch v := t.(type) {
			case *etree.CharData:
				b.WriteString(v.Data)
			case *etree.Element:
				walk(v)
			}
		}
	}
	walk(e)
	return b.String()
}

// attr returns the value of the attribute key, ignoring its prefix.
func attr(e *etree.Element, key string) string {
	return e.SelectAttrValue(key, "")
}

func setAttrIfSet(e *etree.Element, key, value string) {
	if value != "" {
		e.CreateAttr(key, value)
	}
}

// ensureNamespace declares prefix on root unless it is already bound.
func ensureNamespace(root *etree.Element, prefix, uri string) {
	if root.SelectAttr("xmlns:"+prefix) == nil {
		root.CreateAttr("xmlns:"+prefix, uri)
	}
}

// tokens splits a whitespace-separated attribute value; empty yields nil.
func tokens(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
