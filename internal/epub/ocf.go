package epub

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"
)

const (
	encryptionPath      = "META-INF/encryption.xml"
	namespaceXMLEnc     = "http://www.w3.org/2001/04/xmlenc#"
	containerXMLVersion = "1.0"
)

// Codec reads and writes OCF archives.
type Codec struct {
	opts Options
}

// NewCodec returns a codec using opts with defaults filled in.
func NewCodec(opts Options) *Codec {
	return &Codec{opts: opts.withDefaults()}
}

// buildContainerXML returns META-INF/container.xml pointing at rootfile.
func buildContainerXML(rootfile string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDeclaration)
	root := doc.CreateElement("container")
	root.CreateAttr("version", containerXMLVersion)
	root.CreateAttr("xmlns", NamespaceContainer)
	rf := root.CreateElement("rootfiles").CreateElement("rootfile")
	rf.CreateAttr("full-path", rootfile)
	rf.CreateAttr("media-type", PackageMediaType)
	doc.Indent(2)
	return doc.WriteToBytes()
}

// parseContainerXML returns the full-path of the first package rootfile.
func parseContainerXML(data []byte) (string, error) {
	doc, err := readXML(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedContainer, ContainerPath, err)
	}
	for _, rf := range allElements(doc.Root(), "rootfile") {
		if attr(rf, "media-type") != PackageMediaType {
			continue
		}
		if p := NormalizePath(attr(rf, "full-path")); p != "" {
			return p, nil
		}
	}
	return "", ErrRootfileNotFound
}

// buildEncryptionXML lists the IDPF-obfuscated archive entries.
func buildEncryptionXML(entries []string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", xmlDeclaration)
	root := doc.CreateElement("encryption")
	root.CreateAttr("xmlns", NamespaceContainer)
	root.CreateAttr("xmlns:enc", namespaceXMLEnc)
	for _, name := range entries {
		data := root.CreateElement("enc:EncryptedData")
		data.CreateElement("enc:EncryptionMethod").CreateAttr("Algorithm", IDPFAlgorithm)
		ref := data.CreateElement("enc:CipherData").CreateElement("enc:CipherReference")
		ref.CreateAttr("URI", (&url.URL{Path: name}).EscapedPath())
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

// parseEncryptionXML returns the archive entries obfuscated with the IDPF
// algorithm. Other algorithms are ignored.
func parseEncryptionXML(data []byte) (map[string]bool, error) {
	doc, err := readXML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedContainer, encryptionPath, err)
	}
	out := make(map[string]bool)
	for _, ed := range allElements(doc.Root(), "EncryptedData") {
		method := firstElement(ed, "EncryptionMethod")
		ref := firstElement(ed, "CipherReference")
		if method == nil || ref == nil || attr(method, "Algorithm") != IDPFAlgorithm {
			continue
		}
		out[archivePath("", attr(ref, "URI"))] = true
	}
	return out, nil
}

// archivePath maps a package-relative href to its archive entry name.
func archivePath(pkgDir, href string) string {
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	href, _ = splitFragment(href)
	if pkgDir == "" || pkgDir == "." {
		return NormalizePath(href)
	}
	return NormalizePath(path.Join(pkgDir, href))
}

// safeArchivePath reports whether name stays inside the archive root.
func safeArchivePath(name string) bool {
	return name != "" && name != "." && !path.IsAbs(name) &&
		name != ".." && !strings.HasPrefix(name, "../")
}

func packageDir(rootfile string) string {
	dir := path.Dir(rootfile)
	if dir == "." {
		return ""
	}
	return dir
}
