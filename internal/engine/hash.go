package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const hashLen = 16

// normalize lowercases, collapses interior whitespace, and trims s so that
// hash(normalize(s)) is stable across cosmetic differences in phrasing.
func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// contentHash returns a short hex digest of s, used as the dedup key.
func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}
