package cover

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

const (
	defaultMaxWidth    = 600
	defaultJPEGQuality = 90
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// ThumbnailOptions controls Render. Zero values select defaults.
type ThumbnailOptions struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// Thumbnail holds a rendered image.
type Thumbnail struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

func (o ThumbnailOptions) withDefaults() ThumbnailOptions {
	if o.MaxWidth <= 0 {
		o.MaxWidth = defaultMaxWidth
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = defaultJPEGQuality
	}
	if o.JPEGQuality > 100 {
		o.JPEGQuality = 100
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = defaultMaxPixels
	}
	return o
}

// Render decodes data, shrinks it to at most MaxWidth pixels wide and
// encodes the result. Images with transparency stay PNG; everything else
// becomes JPEG.
func Render(data []byte, opts ThumbnailOptions) (Thumbnail, error) {
	opts = opts.withDefaults()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("image decode failed: %w", err)
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > uint64(opts.MaxPixels) {
		return Thumbnail{}, fmt.Errorf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("image decode failed: %w", err)
	}

	processed := src
	if src.Bounds().Dx() > opts.MaxWidth {
		processed = imaging.Resize(src, opts.MaxWidth, 0, imaging.Lanczos)
	}

	format, name := imaging.JPEG, "jpeg"
	if hasAlpha(processed) {
		format, name = imaging.PNG, "png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, format, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		return Thumbnail{}, fmt.Errorf("%s encode failed: %w", name, err)
	}

	return Thumbnail{
		Data:   buf.Bytes(),
		Width:  processed.Bounds().Dx(),
		Height: processed.Bounds().Dy(),
		Format: name,
	}, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	rgba := image.NewNRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return !rgba.Opaque()
}
