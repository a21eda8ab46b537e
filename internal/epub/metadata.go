package epub

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata holds the Dublin Core metadata of a publication.
type Metadata struct {
	Identifier      string
	Title           string
	Language        string
	Creators        []string
	Contributors    []string
	Publisher       string
	Description     string
	Rights          string
	PublicationDate time.Time // zero when unset
	Modified        time.Time // zero when unset
	// Extra keeps unrecognized metadata as name -> text. Attributes and
	// nested markup of those elements are not preserved.
	Extra map[string]string
}

// NewMetadata returns Metadata with the three required fields set.
func NewMetadata(identifier, title, language string) (Metadata, error) {
	md := Metadata{
		Identifier: identifier,
		Title:      title,
		Language:   language,
		Extra:      map[string]string{},
	}
	if err := md.Validate(); err != nil {
		return Metadata{}, err
	}
	return md, nil
}

// NewIdentifier returns a fresh urn:uuid identifier.
func NewIdentifier() string {
	return "urn:uuid:" + uuid.NewString()
}

// Validate reports every empty required field.
func (m Metadata) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Identifier) == "" {
		missing = append(missing, "identifier")
	}
	if strings.TrimSpace(m.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(m.Language) == "" {
		missing = append(missing, "language")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingMetadata, strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	m.Creators = slices.Clone(m.Creators)
	m.Contributors = slices.Clone(m.Contributors)
	if m.Extra != nil {
		m.Extra = maps.Clone(m.Extra)
	}
	return m
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseDate accepts the W3CDTF subset used by EPUB producers.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
