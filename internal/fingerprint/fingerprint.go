// Package fingerprint derives stable prompt identifiers from owner and content.
//
// A fingerprint is "{ownerID}_{hash}" where the hash is computed over the
// lower-cased, trimmed prompt text. Re-importing the same text for the same
// owner therefore yields the same identifier, which lets the store upsert
// instead of duplicating.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Func maps an owner and a normalized prompt text to a record id.
type Func func(ownerID, text string) string

// Scheme names a fingerprint algorithm.
type Scheme string

const (
	// SchemeSHA128 uses the first 128 bits of SHA-256.
	SchemeSHA128 Scheme = "sha128"
	// SchemeLegacy32 uses the 32-bit rolling string hash of the first
	// generation of the library. Its ids collide far more often.
	SchemeLegacy32 Scheme = "legacy32"
)

// ForScheme returns the fingerprint function for a scheme name.
// An empty name selects SchemeSHA128.
func ForScheme(s Scheme) (Func, error) {
	switch Scheme(strings.ToLower(string(s))) {
	case "", SchemeSHA128:
		return SHA128, nil
	case SchemeLegacy32:
		return Legacy32, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint scheme %q", s)
	}
}

// Legacy32 hashes the UTF-16 code units of the cleaned text with
// h = 31*h + unit in signed 32-bit arithmetic and uses |h|.
func Legacy32(ownerID, text string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(clean(text))) {
		h = 31*h + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return ownerID + "_" + strconv.FormatInt(abs, 10)
}

// SHA128 hashes the cleaned text with SHA-256 and keeps the first 16 bytes.
func SHA128(ownerID, text string) string {
	sum := sha256.Sum256([]byte(clean(text)))
	return ownerID + "_" + hex.EncodeToString(sum[:16])
}

func clean(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
