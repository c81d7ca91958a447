package ledger

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// ChecksumFile hashes path with blake2b-256 and returns the hex digest,
// truncated to 32 hex characters (16 bytes), enough to detect accidental
// reuse of incompatible output without storing a full 32-byte digest per
// file per run.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", importerrors.ErrIO
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", importerrors.ErrIO
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]), nil
}
