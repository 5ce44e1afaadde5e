package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// StorageKey returns prefix + ":" + the first 16 hex chars of sha256(canonical).
// Query params may carry arbitrary search text, so they never appear raw
// in provider keys.
func StorageKey(prefix, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
