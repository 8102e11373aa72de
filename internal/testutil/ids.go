package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialUUIDs hands out predictable UUIDs for tests.
//
// The first call to Next returns 00000000-0000-0000-0000-000000000001,
// the second ...0002, and so on. Pass Next to session.WithIDGenerator to
// make assigned document ids deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialUUIDs struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequentialUUIDs creates a generator starting at 0.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Next returns the next UUID in sequence.
func (g *SequentialUUIDs) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return SequentialUUID(g.seq)
}

// Reset restarts the sequence. After Reset, Next returns ...0001 again.
func (g *SequentialUUIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// SequentialUUID returns the n-th UUID Next would produce.
func SequentialUUID(n uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}
