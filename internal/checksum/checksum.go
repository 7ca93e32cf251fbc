// Package checksum computes content identifiers.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// GitBlobSHA returns the hex-encoded SHA-1 a git remote assigns to a blob
// with the given content ("blob <size>\x00" header plus body). Used to
// verify fetched content against the hash from the tree listing and to
// recognize unchanged content across reloads.
func GitBlobSHA(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
