package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates predictable record IDs ("<prefix>-0001", ...).
//
// Stores take an ID generator so golden output stays byte-identical between
// runs; production uses UUIDv7.
//
// Thread-safety: Next is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequenceIDs creates a generator. An empty prefix becomes "test".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceIDs{prefix: prefix}
}

// Next returns the next ID. The first call returns "<prefix>-0001".
func (g *SequenceIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}
