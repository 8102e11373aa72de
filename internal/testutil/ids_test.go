package testutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSequentialUUIDs_Next(t *testing.T) {
	gen := NewSequentialUUIDs()

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", gen.Next().String())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", gen.Next().String())
	assert.Equal(t, SequentialUUID(3), gen.Next())
}

func TestSequentialUUIDs_Reset(t *testing.T) {
	gen := NewSequentialUUIDs()
	gen.Next()
	gen.Next()

	gen.Reset()
	assert.Equal(t, SequentialUUID(1), gen.Next())
}

func TestSequentialUUIDs_Concurrent(t *testing.T) {
	gen := NewSequentialUUIDs()

	const goroutines = 50
	seen := make(chan uuid.UUID, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- gen.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[uuid.UUID]bool{}
	for id := range seen {
		unique[id] = true
	}
	assert.Len(t, unique, goroutines, "every id must be distinct")
}
