// Package fingerprint derives the identity under which a logical upload is
// known to the collector. The identity survives reconnects and process
// restarts, which is what lets the server correlate a fresh connection with
// the bytes it already holds.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
)

// Compute returns the upload identity for the file at path: the SHA-256 hex
// digest of "<clientName>|<filename>|<fileSize>|<mtime_ns>". Only filesystem
// metadata is read, never file content, so the identity is cheap even for
// multi-gigabyte captures.
//
// Known limitation, kept on purpose: if the content changes while (size,
// mtime) happen to coincide, the identity cannot tell the versions apart.
// It is an identity, not an integrity proof.
func Compute(clientName, filename string, fileSize uint64, path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", faults.NewFileSystemError("stat", path, err)
	}

	seed := fmt.Sprintf("%s|%s|%d|%d", clientName, filename, fileSize, st.ModTime().UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:]), nil
}
