package epub

import (
	"crypto/sha1"
	"strings"
	"unicode"
)

// FontObfuscator scrambles and restores embedded font bytes.
type FontObfuscator interface {
	Obfuscate(data []byte, identifier string) []byte
	Deobfuscate(data []byte, identifier string) []byte
}

// IDPFObfuscator implements the IDPF font obfuscation algorithm: the first
// 1040 bytes are XORed with the SHA-1 of the unique identifier stripped of
// whitespace. The operation is its own inverse.
type IDPFObfuscator struct{}

// IDPFAlgorithm is the encryption.xml algorithm URI of IDPFObfuscator.
const IDPFAlgorithm = "http://www.idpf.org/2008/embedding"

const idpfObfuscatedLength = 1040

func (IDPFObfuscator) Obfuscate(data []byte, identifier string) []byte {
	return idpfXOR(data, identifier)
}

func (IDPFObfuscator) Deobfuscate(data []byte, identifier string) []byte {
	return idpfXOR(data, identifier)
}

func idpfXOR(data []byte, identifier string) []byte {
	key := sha1.Sum([]byte(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, identifier)))
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i < len(out) && i < idpfObfuscatedLength; i++ {
		out[i] ^= key[i%len(key)]
	}
	return out
}

// IsFontMediaType reports whether mediaType is an embeddable font type.
func IsFontMediaType(mediaType string) bool {
	switch mediaType {
	case "font/otf", "font/ttf", "font/woff", "font/woff2",
		"application/font-sfnt", "application/font-woff",
		"application/vnd.ms-opentype", "application/x-font-ttf":
		return true
	}
	return false
}
