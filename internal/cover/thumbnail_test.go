package cover

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestRender_ResizeOverMaxWidth(t *testing.T) {
	data := mustEncodeJPEG(t, makeSolidNRGBA(1200, 800, color.NRGBA{R: 20, G: 50, B: 200, A: 255}))

	out, err := Render(data, ThumbnailOptions{MaxWidth: 600})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Width != 600 || out.Height != 400 {
		t.Fatalf("got %dx%d, want 600x400", out.Width, out.Height)
	}
	if out.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg", out.Format)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}

func TestRender_NoResizeUnderMaxWidth(t *testing.T) {
	data := mustEncodeJPEG(t, makeSolidNRGBA(500, 300, color.NRGBA{R: 100, G: 120, B: 140, A: 255}))

	out, err := Render(data, ThumbnailOptions{MaxWidth: 600})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Width != 500 || out.Height != 300 {
		t.Fatalf("got %dx%d, want 500x300", out.Width, out.Height)
	}
}

func TestRender_OpaquePNGBecomesJPEG(t *testing.T) {
	data := mustEncodePNG(t, makeSolidNRGBA(700, 400, color.NRGBA{R: 10, G: 80, B: 180, A: 255}))

	out, err := Render(data, ThumbnailOptions{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Format != "jpeg" {
		t.Fatalf("format = %q, want jpeg", out.Format)
	}
}

func TestRender_KeepTransparentPNG(t *testing.T) {
	data := mustEncodePNG(t, makeSolidNRGBA(700, 400, color.NRGBA{R: 10, G: 80, B: 180, A: 120}))

	out, err := Render(data, ThumbnailOptions{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Format != "png" {
		t.Fatalf("format = %q, want png", out.Format)
	}
	if _, err := png.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func TestRender_PixelLimit(t *testing.T) {
	data := mustEncodePNG(t, makeSolidNRGBA(100, 100, color.NRGBA{A: 255}))

	if _, err := Render(data, ThumbnailOptions{MaxPixels: 5000}); err == nil {
		t.Fatal("Render() succeeded over the pixel limit")
	}
}

func TestRender_Garbage(t *testing.T) {
	if _, err := Render([]byte("not an image"), ThumbnailOptions{}); err == nil {
		t.Fatal("Render() succeeded on garbage input")
	}
}

func makeSolidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func mustEncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func mustEncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}
