package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/yuanying/epub3/internal/epub"
)

func readCLIOptionsForTest(t *testing.T, flagArgs ...string) error {
	t.Helper()
	cmd := newRootCmd()
	if err := cmd.ParseFlags(flagArgs); err != nil {
		return err
	}
	_, err := readCLIOptions(cmd, []string{"./input/book.epub"})
	return err
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	opts, err := readCLIOptions(cmd, []string{"./input/book.epub"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.Codec.RootfilePath != epub.DefaultRootfilePath {
		t.Fatalf("RootfilePath = %q, want %q", opts.Codec.RootfilePath, epub.DefaultRootfilePath)
	}
	if opts.Codec.MaxNavDepth != 100 {
		t.Fatalf("MaxNavDepth = %d, want 100", opts.Codec.MaxNavDepth)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if opts.Codec.Logger != opts.Logger {
		t.Fatal("codec logger differs from CLI logger")
	}
	if !opts.Logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{
		"--rootfile", "OEBPS/content.opf",
		"--max-nav-depth", "8",
		"--log-level", "warn",
		"--verbose",
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	opts, err := readCLIOptions(cmd, []string{"./input/book.epub"})
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.Codec.RootfilePath != "OEBPS/content.opf" {
		t.Fatalf("RootfilePath = %q", opts.Codec.RootfilePath)
	}
	if opts.Codec.MaxNavDepth != 8 {
		t.Fatalf("MaxNavDepth = %d", opts.Codec.MaxNavDepth)
	}
	// --verbose overrides log-level to debug
	if !opts.Logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("Logger should be enabled at DEBUG level when --verbose is set")
	}
}

func TestReadCLIOptions_InvalidLogLevel(t *testing.T) {
	for _, v := range []string{"trace", "", "dpanic", "panic", "fatal"} {
		err := readCLIOptionsForTest(t, "--log-level", v)
		if err == nil || !strings.Contains(err.Error(), "--log-level") {
			t.Fatalf("--log-level %q: expected validation error, got %v", v, err)
		}
	}
}

func TestReadCLIOptions_InvalidLogFormat(t *testing.T) {
	err := readCLIOptionsForTest(t, "--log-format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "--log-format") {
		t.Fatalf("expected log-format validation error, got %v", err)
	}
}

func TestReadCLIOptions_InvalidMaxNavDepth(t *testing.T) {
	err := readCLIOptionsForTest(t, "--max-nav-depth", "0")
	if err == nil || !strings.Contains(err.Error(), "--max-nav-depth") {
		t.Fatalf("expected max-nav-depth validation error, got %v", err)
	}
}

func TestReadCLIOptions_InvalidRootfile(t *testing.T) {
	for _, v := range []string{"/abs/package.opf", "META-INF/package.opf", " "} {
		err := readCLIOptionsForTest(t, "--rootfile", v)
		if err == nil || !strings.Contains(err.Error(), "--rootfile") {
			t.Fatalf("--rootfile %q: expected validation error, got %v", v, err)
		}
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "info", "JSON")
	logger.Info("test message")
	// JSON format should produce JSON output (starts with '{')
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output for format 'JSON', got: %s", output)
	}
}

func TestBuildLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "error", "console")
	logger.Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("warn message written at error level: %s", buf.String())
	}
}

func TestCLI_NewInspectValidateTOC(t *testing.T) {
	book := filepath.Join(t.TempDir(), "book.epub")

	if _, err := runCLI(t, "new", book, "--title", "Sample", "--author", "Ann", "--identifier", "urn:isbn:123"); err != nil {
		t.Fatalf("new error = %v", err)
	}

	out, err := runCLI(t, "inspect", book)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{
		"Identifier: urn:isbn:123",
		"Title:      Sample",
		"Creators:   Ann",
		"chapter-1",
		"[nav]",
		"1. chapter-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "validate", book)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "valid (0 warnings)") {
		t.Errorf("validate output = %q", out)
	}

	out, err = runCLI(t, "toc", book)
	if err != nil {
		t.Fatalf("toc error = %v", err)
	}
	if !strings.Contains(out, "toc:\n  Sample -> text/chapter-1.xhtml\n") {
		t.Errorf("toc output = %q", out)
	}
	if !strings.Contains(out, "landmarks:\n  Start of Content -> text/chapter-1.xhtml\n") {
		t.Errorf("toc output = %q", out)
	}
}

func TestCLI_NewRequiresTitle(t *testing.T) {
	book := filepath.Join(t.TempDir(), "book.epub")
	if _, err := runCLI(t, "new", book); err == nil {
		t.Fatal("new without --title succeeded")
	}
	if _, err := os.Stat(book); !os.IsNotExist(err) {
		t.Errorf("book was written despite the error: %v", err)
	}
}

func TestCLI_ValidateReportsErrors(t *testing.T) {
	md, err := epub.NewMetadata("urn:uuid:1", "Empty", "en")
	if err != nil {
		t.Fatal(err)
	}
	c, err := epub.Create(md)
	if err != nil {
		t.Fatal(err)
	}
	book := filepath.Join(t.TempDir(), "empty.epub")
	if err := epub.NewCodec(epub.Options{}).WriteFile(book, c); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := runCLI(t, "validate", book)
	if err == nil {
		t.Fatal("validate succeeded on an empty spine")
	}
	if !strings.Contains(out, "ERROR   [spine] Empty spine") {
		t.Errorf("validate output = %q", out)
	}
	if !strings.Contains(out, "WARNING [navigation]") {
		t.Errorf("validate output = %q", out)
	}
}

func TestCLI_Cover(t *testing.T) {
	md, err := epub.NewMetadata("urn:uuid:1", "Covered", "en")
	if err != nil {
		t.Fatal(err)
	}
	c, err := newBook(md)
	if err != nil {
		t.Fatalf("newBook() error = %v", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := c.AddManifestItem(epub.ManifestItem{ID: "cover", Href: "images/front.png", MediaType: "image/png", Properties: []string{"cover-image"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddResource(epub.Resource{Path: "images/front.png", Data: buf.Bytes()}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	book := filepath.Join(dir, "book.epub")
	if err := epub.NewCodec(epub.Options{}).WriteFile(book, c); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	thumb := filepath.Join(dir, "thumb.jpg")
	out, err := runCLI(t, "cover", book, "-o", thumb, "--max-width", "50")
	if err != nil {
		t.Fatalf("cover error = %v", err)
	}
	if !strings.Contains(out, "manifest-property") || !strings.Contains(out, "50x40") {
		t.Errorf("cover output = %q", out)
	}
	data, err := os.ReadFile(thumb)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if format != "jpeg" || cfg.Width != 50 || cfg.Height != 40 {
		t.Errorf("thumbnail = %s %dx%d, want jpeg 50x40", format, cfg.Width, cfg.Height)
	}
}

func TestDefaultCoverPath(t *testing.T) {
	if got := defaultCoverPath("./books/sample.epub", "jpeg"); got != "./books/sample-cover.jpg" {
		t.Fatalf("defaultCoverPath() = %q", got)
	}
	if got := defaultCoverPath("./books/sample.epub", "png"); got != "./books/sample-cover.png" {
		t.Fatalf("defaultCoverPath() = %q", got)
	}
}
