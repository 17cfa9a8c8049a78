// Package ledger reads and writes checksum ledgers.
//
// A ledger is a flat list of "<sha256>  <filename>" lines, the format
// produced by sha256sum. The build writes an ephemeral checksums.txt; the
// committed checksums-pin.txt is the trust anchor consulted at install time.
package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/hyena-release/internal/digest"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/fsx"
)

// Standard filenames.
const (
	BuildFile = "checksums.txt"
	PinFile   = "checksums-pin.txt"
)

// Entry maps one artifact filename to its SHA-256.
type Entry struct {
	SHA256 string `json:"sha256"`
	Name   string `json:"name"`
}

// Line renders the entry as a ledger line without the trailing newline.
func (e Entry) Line() string {
	return e.SHA256 + "  " + e.Name
}

// Ledger is an ordered set of entries with unique names.
type Ledger struct {
	Entries []Entry
}

// New builds a ledger from entries, rejecting invalid digests and duplicate names.
func New(entries ...Entry) (Ledger, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !digest.Valid(e.SHA256) {
			return Ledger{}, fmt.Errorf("entry %q: invalid sha256 %q", e.Name, e.SHA256)
		}
		if e.Name == "" || strings.ContainsAny(e.Name, "\r\n") {
			return Ledger{}, fmt.Errorf("entry with sha256 %s: invalid name %q", e.SHA256, e.Name)
		}
		if seen[e.Name] {
			return Ledger{}, fmt.Errorf("duplicate entry for %q", e.Name)
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return Ledger{Entries: out}, nil
}

// Parse reads ledger lines from r. Blank lines and lines starting with '#'
// are skipped. Hex digests are lower-cased; a '*' binary-mode marker before
// the filename is accepted.
func Parse(r io.Reader) (Ledger, error) {
	var entries []Entry
	seen := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return Ledger{}, malformed(lineNo, err.Error())
		}
		if prev, dup := seen[entry.Name]; dup {
			return Ledger{}, malformed(lineNo, fmt.Sprintf("duplicate entry for %q (first on line %d)", entry.Name, prev))
		}
		seen[entry.Name] = lineNo
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return Ledger{}, fmt.Errorf("read ledger: %w", err)
	}
	return Ledger{Entries: entries}, nil
}

func parseLine(line string) (Entry, error) {
	sum, name, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, errors.New("expected \"<sha256>  <filename>\"")
	}
	sum = strings.ToLower(sum)
	if !digest.Valid(sum) {
		return Entry{}, fmt.Errorf("invalid sha256 %q", sum)
	}
	// sha256sum separates with " " (text mode) or " *" (binary mode) after the digest.
	switch {
	case strings.HasPrefix(name, " "):
		name = name[1:]
	case strings.HasPrefix(name, "*"):
		name = name[1:]
	default:
		return Entry{}, errors.New("expected two spaces between sha256 and filename")
	}
	if strings.TrimSpace(name) == "" {
		return Entry{}, errors.New("missing filename")
	}
	return Entry{SHA256: sum, Name: name}, nil
}

func malformed(lineNo int, msg string) error {
	return failure.New(failure.KindConfiguration, failure.CodeLedgerMalformed,
		fmt.Sprintf("line %d: %s", lineNo, msg))
}

// ParseFile reads the ledger at path.
func ParseFile(path string) (Ledger, error) {
	// #nosec G304 -- ledger path is explicit configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Ledger{}, &failure.Error{
				Kind:    failure.KindConfiguration,
				Code:    failure.CodeLedgerMalformed,
				Message: fmt.Sprintf("checksum ledger %s not found", path),
				Err:     err,
			}
		}
		return Ledger{}, fmt.Errorf("read ledger %s: %w", path, err)
	}
	l, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Ledger{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Lookup returns the entry for the exact filename.
func (l Ledger) Lookup(name string) (Entry, bool) {
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Upsert returns a copy of l with e replacing any entry of the same name,
// or appended if the name is new.
func (l Ledger) Upsert(e Entry) Ledger {
	out := make([]Entry, 0, len(l.Entries)+1)
	replaced := false
	for _, existing := range l.Entries {
		if existing.Name == e.Name {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, e)
	}
	return Ledger{Entries: out}
}

// Format renders the ledger, one line per entry, each newline-terminated.
func (l Ledger) Format() []byte {
	var buf bytes.Buffer
	for _, e := range l.Entries {
		buf.WriteString(e.Line())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteFile atomically replaces the ledger at path.
func (l Ledger) WriteFile(path string) error {
	if err := fsx.WriteFileAtomic(path, l.Format(), 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	return nil
}
