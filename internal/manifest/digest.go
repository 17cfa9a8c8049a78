package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/roach88/hyena-release/internal/digest"
)

// Digest returns the SHA-256 of the manifest's RFC 8785 canonical JSON.
// It identifies a manifest independently of indentation and key order, and
// is what the history store records for each build.
func (m Manifest) Digest() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize manifest: %w", err)
	}
	return digest.Bytes(canonical), nil
}
