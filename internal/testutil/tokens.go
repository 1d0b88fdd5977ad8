package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokens generates "prefix-1", "prefix-2", ... without ever
// exhausting.
//
// This enables deterministic test execution and golden trace comparison
// when the number of attempts is not known up front. Unlike
// engine.FixedGenerator, which panics past its script, SequenceTokens
// keeps counting.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceTokens creates a generator with the given prefix.
// An empty prefix defaults to "attempt".
func NewSequenceTokens(prefix string) *SequenceTokens {
	if prefix == "" {
		prefix = "attempt"
	}
	return &SequenceTokens{prefix: prefix}
}

// Generate returns the next token in the sequence.
//
// Implements engine.TokenGenerator.
func (g *SequenceTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
