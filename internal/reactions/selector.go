// Package reactions picks emoji reactions from the configured pool and
// defines the fallback tried when the first choice is rejected.
package reactions

import (
	"fmt"
	"math/rand"
)

// Selector draws reactions from a fixed pool. Read-only after New;
// safe for concurrent use.
type Selector struct {
	pool     []string
	fallback string
}

// New validates the pool and builds a selector. An empty pool or
// missing default is a configuration error.
func New(pool []string, fallback string) (*Selector, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("reaction pool is empty")
	}
	if fallback == "" {
		return nil, fmt.Errorf("default reaction is not set")
	}
	return &Selector{pool: append([]string(nil), pool...), fallback: fallback}, nil
}

// Pick returns a uniformly random reaction from the pool.
func (s *Selector) Pick() string {
	return s.pool[rand.Intn(len(s.pool))]
}

// Fallback returns the single alternate symbol tried after the picked
// reaction is rejected. If it also fails the dispatcher gives up on the
// reaction and moves on.
func (s *Selector) Fallback() string {
	return s.fallback
}

// PoolSize reports the number of configured reactions.
func (s *Selector) PoolSize() int {
	return len(s.pool)
}
