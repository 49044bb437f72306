package certificate

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// codeAlphabet omits visually ambiguous characters (0/O, 1/I/L) so codes
// survive being read over the phone or retyped from print.
const codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

const (
	codePrefix    = "WC"
	codeGroups    = 2
	codeGroupSize = 4
)

// GenerateCode produces a human-shareable certificate code, e.g. WC-7XK2-M4QP.
// Drawn from crypto/rand: codes are unpredictable, never sequential. Two
// groups of four over a 30-char alphabet give ~810k squared possibilities,
// enough that collisions stay rare and guessing stays impractical; uniqueness
// is still enforced by the store with bounded retry at mint time.
func GenerateCode() (string, error) {
	chars := make([]byte, 0, codeGroups*codeGroupSize)
	raw := make([]byte, codeGroups*codeGroupSize)
	for len(chars) < cap(chars) {
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		chars = appendCodeChars(chars, raw)
	}

	var b strings.Builder
	b.WriteString(codePrefix)
	for i, c := range chars {
		if i%codeGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// appendCodeChars maps random bytes onto the alphabet with rejection
// sampling: bytes past the largest multiple of the alphabet size are
// discarded, since folding them in would skew the low characters. Appends at
// most cap(dst)-len(dst) characters.
func appendCodeChars(dst, raw []byte) []byte {
	limit := 256 - 256%len(codeAlphabet)
	for _, r := range raw {
		if len(dst) == cap(dst) {
			break
		}
		if int(r) >= limit {
			continue
		}
		dst = append(dst, codeAlphabet[int(r)%len(codeAlphabet)])
	}
	return dst
}
