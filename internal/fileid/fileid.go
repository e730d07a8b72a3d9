// Package fileid provides a deterministic source tag from a file path for imported files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "src:"

// SourceTag returns a stable source tag for the given absolute path.
// Same path always yields the same tag. Imported records carry the tag in
// their metadata so re-imports and deletions can find them by path.
func SourceTag(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
