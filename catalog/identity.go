package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize bounds peak memory while hashing arbitrarily large files.
const hashChunkSize = 1 << 20

// HashFile computes the SHA-256 digest of the file's full byte content,
// streamed in fixed-size chunks, and returns it as a lowercase hex string.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestPrefix returns the first eight hex characters of a digest, or the
// all-zero placeholder when the digest is missing.
func DigestPrefix(digest string) string {
	if len(digest) >= 8 {
		return digest[:8]
	}
	return "00000000"
}

// RecordID derives the canonical record id {model}_{view}_{NN}_{sha8}.
func RecordID(model, view string, seq int, digest string) string {
	return fmt.Sprintf("%s_%s_%02d_%s", model, view, seq, DigestPrefix(digest))
}

// FallbackID picks a best-effort identifier when the filename could not be
// parsed: uid, then filename, then the digest prefix. This is a presentation
// identifier; the digest remains the identity key.
func FallbackID(uid, filename, digest string) string {
	if uid != "" {
		return uid
	}
	if filename != "" {
		return filename
	}
	return DigestPrefix(digest)
}
