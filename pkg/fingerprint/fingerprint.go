// Package fingerprint computes the content fingerprint used to detect
// duplicate uploads: the lowercase hex SHA-256 of the raw file bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultLimit is the largest file the archive accepts
const DefaultLimit int64 = 500 << 20

var (
	ErrNoFile       = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file too large")
)

// Sum hashes everything r yields
func Sum(r io.Reader) (string, error) {
	if r == nil {
		return "", ErrNoFile
	}

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash file, %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckSize returns ErrFileTooLarge if size exceeds limit. A limit <= 0
// means DefaultLimit.
func CheckSize(size, limit int64) error {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if size > limit {
		return fmt.Errorf("%w, max is %d MiB", ErrFileTooLarge, limit>>20)
	}

	return nil
}

// File fingerprints the file at path. The size is checked before a single
// byte is read so oversized files are never loaded.
func File(path string, limit int64) (string, int64, error) {
	if path == "" {
		return "", 0, ErrNoFile
	}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, ErrNoFile
		}

		return "", 0, fmt.Errorf("failed to stat file, %w", err)
	}

	if stat.IsDir() {
		return "", 0, ErrNoFile
	}

	if err := CheckSize(stat.Size(), limit); err != nil {
		return "", stat.Size(), err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file, %w", err)
	}
	defer f.Close()

	fp, err := Sum(f)
	if err != nil {
		return "", 0, err
	}

	return fp, stat.Size(), nil
}
