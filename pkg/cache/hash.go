package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// hashKey returns prefix:sha256(parts). Parts are hashed through their Go
// syntax representation, so NaN and infinite floats hash like any other
// value.
func hashKey(prefix string, parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%#v\x00", p)
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
