// Package validate checks a Container for the structural problems that
// would make a written EPUB unusable. Findings are collected into a Report;
// validation itself never fails.
package validate

import (
	"strings"

	"github.com/yuanying/epub3/internal/epub"
)

// Severity grades an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Locations used by the built-in checks.
const (
	LocationMetadata   = "metadata"
	LocationSpine      = "spine"
	LocationNavigation = "navigation"
)

// Issue is a single error finding.
type Issue struct {
	Message  string
	Location string
	Severity Severity
}

// Warning is a finding that does not invalidate the container.
type Warning struct {
	Message  string
	Location string
}

// Report is the outcome of Validate. Valid is false iff Errors is non-empty.
type Report struct {
	Valid    bool
	Errors   []Issue
	Warnings []Warning
}

// NewReport returns an empty, valid report.
func NewReport() Report {
	return Report{Valid: true}
}

// AddError appends an error and marks the report invalid.
func (r *Report) AddError(message, location string) {
	r.Errors = append(r.Errors, Issue{Message: message, Location: location, Severity: SeverityError})
	r.Valid = false
}

// AddWarning appends a warning.
func (r *Report) AddWarning(message, location string) {
	r.Warnings = append(r.Warnings, Warning{Message: message, Location: location})
}

// Merge appends other's findings after r's.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Valid = len(r.Errors) == 0
}

// Validate runs every check against c.
func Validate(c *epub.Container) Report {
	r := NewReport()
	checkMetadata(&r, c.Package().Metadata)
	checkSpine(&r, c.Spine())
	checkNavigation(&r, c)
	return r
}

func checkMetadata(r *Report, md epub.Metadata) {
	if blank(md.Identifier) {
		r.AddError("Missing identifier in metadata", LocationMetadata)
	}
	if blank(md.Title) {
		r.AddError("Missing title in metadata", LocationMetadata)
	}
	if blank(md.Language) {
		r.AddError("Missing language in metadata", LocationMetadata)
	}
}

func checkSpine(r *Report, s *epub.Spine) {
	if s.Len() == 0 {
		r.AddError("Empty spine", LocationSpine)
	}
}

func checkNavigation(r *Report, c *epub.Container) {
	if _, ok := c.Navigation(); !ok {
		r.AddWarning("No navigation document found", LocationNavigation)
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
