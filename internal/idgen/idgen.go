// Package idgen hands out unique, monotonically increasing identifiers.
// Adapted from the teaching corpus's utils/unique-id package: a small
// mutex-guarded counter, kept independent of any other lock in the system
// so it can be reused outside the engine's own process-table lock too.
package idgen

import "sync"

// Generator issues positive integers starting at 1, never repeating within
// its lifetime.
type Generator struct {
	mu   sync.Mutex
	next int
}

// New returns a Generator whose first Next() call yields 1.
func New() *Generator {
	return &Generator{next: 1}
}

// Next returns the next unused identifier.
func (g *Generator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.next
	g.next++
	return id
}
