package domain

import (
	"strconv"
	"sync/atomic"
)

// ID identifies a board, column or task. IDs grow strictly within a store.
type ID int64

// NoID is the zero ID; it never refers to an entity.
const NoID ID = 0

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal ID. Non-positive values are rejected.
func ParseID(s string) (ID, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return NoID, false
	}
	return ID(n), true
}

// IDGenerator hands out strictly increasing IDs. It is safe for concurrent use.
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator returns a generator whose first ID is after.
func NewIDGenerator(after ID) *IDGenerator {
	g := &IDGenerator{}
	g.last.Store(int64(after))
	return g
}

// Next returns the next ID.
func (g *IDGenerator) Next() ID {
	return ID(g.last.Add(1))
}

// Last returns the most recently issued ID, or the seed if none was issued.
func (g *IDGenerator) Last() ID {
	return ID(g.last.Load())
}

// Observe advances the generator so that later IDs are greater than id.
func (g *IDGenerator) Observe(id ID) {
	for {
		cur := g.last.Load()
		if int64(id) <= cur {
			return
		}
		if g.last.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}
