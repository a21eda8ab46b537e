package epub

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"text/c1.xhtml", "text/c1.xhtml"},
		{"./text/c1.xhtml", "text/c1.xhtml"},
		{`text\c1.xhtml`, "text/c1.xhtml"},
		{"text/./c1.xhtml", "text/c1.xhtml"},
		{"text/../c1.xhtml", "c1.xhtml"},
		{"café.xhtml", "café.xhtml"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResourceStore(t *testing.T) {
	s := NewResourceStore()
	for _, p := range []string{"b.css", "Images/A.png", "c.xhtml"} {
		if err := s.Add(Resource{Path: p, Data: []byte(p)}); err != nil {
			t.Fatalf("Add(%q) error = %v", p, err)
		}
	}
	if err := s.Add(Resource{Path: "./b.css"}); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("Add(./b.css) error = %v, want ErrDuplicatePath", err)
	}
	if err := s.Add(Resource{}); err == nil {
		t.Errorf("Add() without path succeeded")
	}

	r, ok := s.Get("images/a.png")
	if !ok || r.Path != "Images/A.png" {
		t.Fatalf("Get(images/a.png) = %v, %v, want case-insensitive hit", r, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Errorf("Get(missing) = true")
	}

	var order []string
	for _, r := range s.All() {
		order = append(order, r.Path)
	}
	if got := strings.Join(order, ","); got != "b.css,Images/A.png,c.xhtml" {
		t.Errorf("All() order = %s", got)
	}

	if _, err := s.Remove("IMAGES/a.PNG"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, err := s.Remove("IMAGES/a.PNG"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestManifest(t *testing.T) {
	m := NewManifest()
	if err := m.Add(ManifestItem{ID: "a", Href: "a.xhtml", MediaType: MediaTypeXHTML, Properties: []string{"nav"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add(ManifestItem{ID: "a", Href: "other.xhtml"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateID", err)
	}

	it, ok := m.Get("a")
	if !ok {
		t.Fatal("Get(a) not found")
	}
	it.Properties[0] = "changed"
	if again, _ := m.Get("a"); !again.HasProperty("nav") {
		t.Errorf("Get returned an alias of the stored properties")
	}
	if it, ok := m.ByHref("./a.xhtml"); !ok || it.ID != "a" {
		t.Errorf("ByHref(./a.xhtml) = %v, %v", it, ok)
	}

	if err := m.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestSpine_Direction(t *testing.T) {
	s := NewSpine()
	if s.Direction() != DirectionLTR {
		t.Errorf("default Direction = %q, want %q", s.Direction(), DirectionLTR)
	}
	if err := s.SetDirection("up"); err == nil {
		t.Errorf("SetDirection(up) succeeded")
	}
	if err := s.SetDirection(DirectionRTL); err != nil || s.Direction() != DirectionRTL {
		t.Errorf("SetDirection(rtl) = %v, Direction = %q", err, s.Direction())
	}
}

func TestMetadata(t *testing.T) {
	if _, err := NewMetadata("", "", ""); !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("NewMetadata() error = %v, want ErrMissingMetadata", err)
	} else if !strings.Contains(err.Error(), "identifier, title, language") {
		t.Errorf("error %q does not list every missing field", err)
	}

	id := NewIdentifier()
	if !strings.HasPrefix(id, "urn:uuid:") || len(id) != len("urn:uuid:")+36 {
		t.Errorf("NewIdentifier() = %q", id)
	}

	md, err := NewMetadata(id, "T", "en")
	if err != nil {
		t.Fatal(err)
	}
	md.Creators = []string{"a"}
	clone := md.Clone()
	clone.Creators[0] = "b"
	clone.Extra["k"] = "v"
	if md.Creators[0] != "a" || len(md.Extra) != 0 {
		t.Errorf("Clone shares state with the original")
	}
}

func TestIDPFObfuscator(t *testing.T) {
	data := []byte(strings.Repeat("0123456789", 200))
	var o IDPFObfuscator
	scrambled := o.Obfuscate(data, "urn:uuid:abc")
	if string(scrambled) == string(data) {
		t.Fatal("Obfuscate() returned the input unchanged")
	}
	if got := o.Deobfuscate(scrambled, " urn:uuid:abc\n"); string(got) != string(data) {
		t.Errorf("Deobfuscate() with whitespace in the identifier did not restore the input")
	}
}
