package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario run with a fresh SequentialGenerator produces
// byte-identical journals.
//
// Thread-safety: SequentialGenerator is safe for concurrent use via internal
// mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator with the given prefix.
// If prefix is empty, "test" is used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
