// Package cover finds the cover image of a Container and renders
// thumbnails of it.
package cover

import (
	"path"
	"strings"

	"github.com/yuanying/epub3/internal/epub"
)

// Detection methods, in priority order.
const (
	MethodManifestProperty = "manifest-property"
	MethodMetadataCover    = "metadata-cover"
	MethodLandmarkFirstImg = "landmark-xhtml-first-img"
	MethodFilenamePattern  = "filename-pattern"
)

// Info represents the detected cover image details.
type Info struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string
}

// Detect detects the cover image using prioritized methods. It returns nil
// when no raster image qualifies.
func Detect(c *epub.Container) *Info {
	if c == nil {
		return nil
	}
	for _, detect := range []func(*epub.Container) *Info{
		byProperty,
		byMetadata,
		byLandmark,
		byFilename,
	} {
		if info := detect(c); info != nil {
			return info
		}
	}
	return nil
}

func byProperty(c *epub.Container) *Info {
	for _, item := range c.Manifest().Items() {
		if isImage(item.MediaType) && item.HasProperty(epub.PropertyCoverImage) {
			return newInfo(item, MethodManifestProperty)
		}
	}
	return nil
}

// byMetadata follows the EPUB 2 <meta name="cover" content="id"> convention.
func byMetadata(c *epub.Container) *Info {
	id := c.Package().Metadata.Extra["cover"]
	if id == "" {
		return nil
	}
	item, ok := c.Manifest().Get(id)
	if !ok || !isImage(item.MediaType) {
		return nil
	}
	return newInfo(item, MethodMetadataCover)
}

// byLandmark resolves a "cover" landmark to an XHTML page and takes the
// first image it shows.
func byLandmark(c *epub.Container) *Info {
	nav, ok := c.Navigation()
	if !ok {
		return nil
	}
	for _, p := range nav.Tree.Landmarks {
		if !strings.EqualFold(p.Type, "cover") {
			continue
		}
		target, _, _ := strings.Cut(p.Href, "#")
		if target == "" {
			continue
		}
		target = epub.NormalizePath(path.Join(path.Dir(nav.Path()), target))

		if item, ok := c.Manifest().ByHref(target); ok && isImage(item.MediaType) {
			return newInfo(item, MethodLandmarkFirstImg)
		}
		doc, ok := c.Document(target)
		if !ok {
			continue
		}
		page, ok := doc.(*epub.XHTMLDocument)
		if !ok {
			continue
		}
		refs, err := page.References()
		if err != nil || len(refs.Images) == 0 {
			continue
		}
		if item, ok := c.Manifest().ByHref(refs.Images[0]); ok && isImage(item.MediaType) {
			return newInfo(item, MethodLandmarkFirstImg)
		}
	}
	return nil
}

func byFilename(c *epub.Container) *Info {
	for _, item := range c.Manifest().Items() {
		if !isImage(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return newInfo(item, MethodFilenamePattern)
		}
	}
	return nil
}

func newInfo(item epub.ManifestItem, method string) *Info {
	return &Info{
		ManifestID:      item.ID,
		Href:            item.Href,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}

// isImage checks if a media type indicates a raster image file.
func isImage(mediaType string) bool {
	if mediaType == epub.MediaTypeSVG {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
