// Package digest computes SHA-256 content hashes of artifacts.
//
// Hashes are always recomputed from bytes. Nothing in this package caches or
// trusts a previously recorded value.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
)

// HexLen is the length of a lowercase hex SHA-256 digest.
const HexLen = sha256.Size * 2

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Bytes returns the lowercase hex SHA-256 of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Reader hashes r to EOF and returns the digest and byte count.
func Reader(r io.Reader) (string, int64, error) {
	w := NewWriter()
	n, err := io.Copy(w, r)
	if err != nil {
		return "", n, fmt.Errorf("hash stream: %w", err)
	}
	return w.Sum(), n, nil
}

// File hashes the file at path.
func File(path string) (string, error) {
	// #nosec G304 -- artifact paths are derived from configured release directories.
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	sum, _, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// Writer accumulates a SHA-256 over everything written to it.
// Use it with io.MultiWriter to hash while copying.
type Writer struct {
	h hash.Hash
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the lowercase hex digest of the bytes written so far.
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Valid reports whether s is a lowercase 64-character hex digest.
func Valid(s string) bool {
	return hexPattern.MatchString(s)
}
