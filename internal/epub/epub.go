// Package epub models EPUB3 publications and reads and writes them as OCF
// zip archives.
package epub

import (
	"go.uber.org/zap"
)

// OCF and OPF constants.
const (
	MimeType            = "application/epub+zip"
	ContainerPath       = "META-INF/container.xml"
	PackageMediaType    = "application/oebps-package+xml"
	DefaultRootfilePath = "content/package.opf"

	NamespaceOPF       = "http://www.idpf.org/2007/opf"
	NamespaceDC        = "http://purl.org/dc/elements/1.1/"
	NamespaceOPS       = "http://www.idpf.org/2007/ops"
	NamespaceXHTML     = "http://www.w3.org/1999/xhtml"
	NamespaceSVG       = "http://www.w3.org/2000/svg"
	NamespaceContainer = "urn:oasis:names:tc:opendocument:xmlns:container"
)

// Media types that get materialized into content documents.
const (
	MediaTypeXHTML = "application/xhtml+xml"
	MediaTypeSVG   = "image/svg+xml"
	MediaTypeNCX   = "application/x-dtbncx+xml"
	MediaTypeCSS   = "text/css"
)

const (
	defaultMaxNavDepth  = 100
	defaultMaxEntrySize = 256 << 20
)

// Options configures a Codec. The zero value is usable.
type Options struct {
	// RootfilePath is where Write stores the package document.
	// Default: "content/package.opf".
	RootfilePath string
	// MaxNavDepth bounds navigation list nesting. Default: 100.
	MaxNavDepth int
	// MaxEntrySize caps the decompressed size of a single archive entry.
	// Default: 256 MiB.
	MaxEntrySize int64
	// Logger receives warnings about entries skipped while reading.
	// Default: no-op.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.RootfilePath == "" {
		o.RootfilePath = DefaultRootfilePath
	}
	if o.MaxNavDepth <= 0 {
		o.MaxNavDepth = defaultMaxNavDepth
	}
	if o.MaxEntrySize <= 0 {
		o.MaxEntrySize = defaultMaxEntrySize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
