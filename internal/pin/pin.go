// Package pin reads the committed release pin.
//
// release-pin.txt holds exactly one CHECKPOINT_ID=<identity> record naming
// the sanctioned install target. The installer only ever reads it; Write
// exists for the curator step that promotes a verified release.
package pin

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/fsx"
)

// File is the conventional pin filename.
const File = "release-pin.txt"

// Key is the only key recognized in a pin file.
const Key = "CHECKPOINT_ID"

// Read parses the pin file at path.
func Read(path string) (checkpoint.Identity, error) {
	// #nosec G304 -- pin path is explicit configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &failure.Error{
				Kind:    failure.KindConfiguration,
				Code:    failure.CodePinMissing,
				Message: fmt.Sprintf("pin file %s not found", path),
				Hint:    "commit a " + File + " containing " + Key + "=cp-YYYYMMDD-<sha>",
				Err:     err,
			}
		}
		return "", fmt.Errorf("read pin %s: %w", path, err)
	}
	id, err := Parse(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// Parse extracts the pinned identity. Blank lines and '#' comments are
// ignored; any other line must be the single CHECKPOINT_ID record.
func Parse(data []byte) (checkpoint.Identity, error) {
	var (
		value  string
		found  bool
		lineNo int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != Key {
			return "", malformed(fmt.Sprintf("line %d: expected %s=<checkpoint id>", lineNo, Key))
		}
		if found {
			return "", malformed(fmt.Sprintf("line %d: duplicate %s", lineNo, Key))
		}
		value = strings.TrimSpace(v)
		found = true
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read pin: %w", err)
	}
	if !found || value == "" {
		return "", malformed(Key + " is not set")
	}
	id, err := checkpoint.Parse(value)
	if err != nil {
		return "", &failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodePinMalformed,
			Message: fmt.Sprintf("%s=%s is not a checkpoint identity", Key, value),
			Err:     err,
		}
	}
	return id, nil
}

func malformed(msg string) error {
	return failure.New(failure.KindConfiguration, failure.CodePinMalformed, msg)
}

// Format renders a pin record.
func Format(id checkpoint.Identity) []byte {
	return []byte(Key + "=" + id.String() + "\n")
}

// Write atomically replaces the pin file at path.
func Write(path string, id checkpoint.Identity) error {
	if _, err := checkpoint.Parse(id.String()); err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(path, Format(id), 0o644); err != nil {
		return fmt.Errorf("write pin %s: %w", path, err)
	}
	return nil
}
