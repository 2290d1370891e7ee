package memo

import (
	"strings"

	"github.com/opencontainers/go-digest"
)

// keySeparator joins the function name and the canonical signature before
// hashing. A NUL byte cannot appear in a valid function name, so distinct
// (name, signature) pairs never concatenate to the same input.
const keySeparator = "\x00"

// maxReadableKeyLen bounds human-readable entry directory names. Longer
// canonical signatures fall back to the digest form.
const maxReadableKeyLen = 120

// deriveKey maps a function name and canonical signature to the entry's
// directory name: a lowercase hex SHA-512 digest. Pure, no I/O.
func deriveKey(name, canonical string) string {
	return digest.SHA512.FromString(name + keySeparator + canonical).Encoded()
}

// deriveReadableKey renders the canonical signature itself as the entry
// directory name, percent-escaping bytes that are unsafe in a path element.
// Signatures too long for a directory name fall back to deriveKey.
func deriveReadableKey(name, canonical string) string {
	if canonical == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(canonical))
	for i := 0; i < len(canonical); i++ {
		c := canonical[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		// '.' is escaped so a readable key can never look like a
		// staging directory name.
		case c == '-' || c == '_' || c == '=' || c == ';':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		}
		if b.Len() > maxReadableKeyLen {
			return deriveKey(name, canonical)
		}
	}
	return b.String()
}

const hexDigits = "0123456789abcdef"
