package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// archive indexes zip entries by name with a case-insensitive fallback.
type archive struct {
	files   map[string]*zip.File
	folded  map[string]*zip.File
	maxSize int64
}

func newArchive(zr *zip.Reader, maxSize int64) *archive {
	a := &archive{
		files:   make(map[string]*zip.File, len(zr.File)),
		folded:  make(map[string]*zip.File, len(zr.File)),
		maxSize: maxSize,
	}
	for _, f := range zr.File {
		name := NormalizePath(f.Name)
		if _, dup := a.files[name]; dup {
			continue
		}
		a.files[name] = f
		if _, dup := a.folded[strings.ToLower(name)]; !dup {
			a.folded[strings.ToLower(name)] = f
		}
	}
	return a
}

func (a *archive) lookup(name string) (*zip.File, bool) {
	name = NormalizePath(name)
	if f, ok := a.files[name]; ok {
		return f, true
	}
	f, ok := a.folded[strings.ToLower(name)]
	return f, ok
}

// readFile returns the decompressed entry, refusing entries larger than the
// configured limit.
func (a *archive) readFile(name string) ([]byte, error) {
	f, ok := a.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: archive entry %s", ErrNotFound, name)
	}
	if f.UncompressedSize64 > uint64(a.maxSize) {
		return nil, fmt.Errorf("%w: entry %s is %d bytes, limit %d", ErrMalformedContainer, f.Name, f.UncompressedSize64, a.maxSize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedContainer, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, a.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedContainer, f.Name, err)
	}
	if int64(len(data)) > a.maxSize {
		return nil, fmt.Errorf("%w: entry %s exceeds %d bytes", ErrMalformedContainer, f.Name, a.maxSize)
	}
	return data, nil
}

// ReadFile reads the EPUB at path.
func (c *Codec) ReadFile(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat EPUB: %w", err)
	}
	return c.Read(f, fi.Size())
}

// ReadBytes reads an EPUB held in memory.
func (c *Codec) ReadBytes(data []byte) (*Container, error) {
	return c.Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses an OCF archive. Manifest items whose bytes are missing, and
// spine entries naming unknown items, are dropped with a warning; a bad
// mimetype, container.xml or package document fails the read.
func (c *Codec) Read(r io.ReaderAt, size int64) (*Container, error) {
	log := c.opts.Logger
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}
	arc := newArchive(zr, c.opts.MaxEntrySize)

	if err := checkMimetype(zr, arc, log); err != nil {
		return nil, err
	}

	containerData, err := arc.readFile(ContainerPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}
	rootfile, err := parseContainerXML(containerData)
	if err != nil {
		return nil, err
	}

	opf, err := arc.readFile(rootfile)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: package document %s not found", ErrMalformedContainer, rootfile)
		}
		return nil, err
	}
	pkg, err := parsePackage(opf, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rootfile, err)
	}

	obfuscated := map[string]bool{}
	if data, err := arc.readFile(encryptionPath); err == nil {
		if obfuscated, err = parseEncryptionXML(data); err != nil {
			return nil, err
		}
	}

	ct := newContainer(pkg, c.opts.MaxNavDepth)
	pkgDir := packageDir(rootfile)
	for _, item := range pkg.Manifest.Items() {
		if isRemote(item.Href) {
			log.Debug("remote resource", zap.String("id", item.ID), zap.String("href", item.Href))
			continue
		}
		name := archivePath(pkgDir, item.Href)
		data, err := arc.readFile(name)
		if errors.Is(err, ErrNotFound) {
			log.Warn("manifest item missing from archive",
				zap.String("id", item.ID), zap.String("entry", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Debug("read entry", zap.String("entry", name), zap.Int("size", len(data)))

		res := Resource{
			ID:         item.ID,
			Path:       item.Href,
			MediaType:  item.MediaType,
			Data:       data,
			Obfuscated: obfuscated[name],
		}
		if err := ct.AddResource(res); err != nil {
			if !errors.Is(err, ErrMalformedDocument) && !errors.Is(err, ErrNavigationTooDeep) {
				log.Warn("skipping resource", zap.String("id", item.ID), zap.Error(err))
				continue
			}
			log.Warn("keeping unparsable document as raw resource",
				zap.String("id", item.ID), zap.Error(err))
			if err := ct.addRawResource(res); err != nil {
				log.Warn("skipping resource", zap.String("id", item.ID), zap.Error(err))
			}
		}
	}

	pkg.Spine.items = slices.DeleteFunc(pkg.Spine.items, func(it SpineItem) bool {
		if _, ok := pkg.Manifest.Get(it.IDRef); ok {
			return false
		}
		log.Warn("dropping spine item with unknown idref", zap.String("idref", it.IDRef))
		return true
	})
	return ct, nil
}

// checkMimetype requires an entry named exactly "mimetype" holding exactly
// "application/epub+zip". Compression or a position other than first is
// tolerated with a warning.
func checkMimetype(zr *zip.Reader, arc *archive, log *zap.Logger) error {
	f, ok := arc.files["mimetype"]
	if !ok {
		return ErrMissingMimetype
	}
	data, err := arc.readFile("mimetype")
	if err != nil {
		return err
	}
	if string(data) != MimeType {
		return ErrInvalidMimetype
	}
	if f.Method != zip.Store {
		log.Warn("mimetype entry is compressed")
	}
	if len(zr.File) > 0 && zr.File[0] != f {
		log.Warn("mimetype is not the first archive entry")
	}
	return nil
}
