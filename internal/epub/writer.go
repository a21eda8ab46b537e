package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

type archiveEntry struct {
	name string
	data []byte
}

// Write serializes ct as an OCF archive: mimetype first and stored, then
// META-INF files, the package document and every resource, deflated.
func (c *Codec) Write(w io.Writer, ct *Container) error {
	entries, err := c.entries(ct)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	now := time.Now()
	mw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     "mimetype",
		Method:   zip.Store,
		Modified: now,
	})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, MimeType); err != nil {
		return fmt.Errorf("failed to write mimetype: %w", err)
	}

	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
		c.opts.Logger.Debug("wrote entry", zap.String("entry", e.name), zap.Int("size", len(e.data)))
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// entries renders everything after mimetype, so that serialization errors
// surface before any byte is written.
func (c *Codec) entries(ct *Container) ([]archiveEntry, error) {
	rootfile := NormalizePath(c.opts.RootfilePath)
	if !safeArchivePath(rootfile) {
		return nil, fmt.Errorf("invalid rootfile path %q", c.opts.RootfilePath)
	}
	if err := ct.pkg.Metadata.Validate(); err != nil {
		return nil, err
	}

	containerXML, err := buildContainerXML(rootfile)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", ContainerPath, err)
	}
	opf, err := ct.pkg.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize package document: %w", err)
	}

	entries := []archiveEntry{{name: ContainerPath, data: containerXML}}
	reserved := map[string]bool{"mimetype": true, ContainerPath: true, encryptionPath: true, rootfile: true}

	var navPath string
	var navData []byte
	if nav, ok := ct.Navigation(); ok {
		navPath = nav.Path()
		if navData, err = nav.Save(); err != nil {
			return nil, fmt.Errorf("failed to serialize navigation document: %w", err)
		}
	}

	pkgDir := packageDir(rootfile)
	var obfuscated []string
	var resources []archiveEntry
	for _, r := range ct.resources.All() {
		name := archivePath(pkgDir, r.Path)
		if !safeArchivePath(name) {
			return nil, fmt.Errorf("resource path %q escapes the archive", r.Path)
		}
		if reserved[name] {
			return nil, fmt.Errorf("resource path %q collides with %s", r.Path, name)
		}
		reserved[name] = true
		data := r.Data
		if r.Path == navPath {
			data = navData
		}
		if r.Obfuscated {
			obfuscated = append(obfuscated, name)
		}
		resources = append(resources, archiveEntry{name: name, data: data})
	}

	if len(obfuscated) > 0 {
		enc, err := buildEncryptionXML(obfuscated)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", encryptionPath, err)
		}
		entries = append(entries, archiveEntry{name: encryptionPath, data: enc})
	}
	entries = append(entries, archiveEntry{name: rootfile, data: opf})
	return append(entries, resources...), nil
}

// WriteFile writes ct to path atomically: the archive is built in a
// temporary file next to path and renamed over it on success.
func (c *Codec) WriteFile(path string, ct *Container) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = c.Write(tmp, ct); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move EPUB into place: %w", err)
	}
	return nil
}
