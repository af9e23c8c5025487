// internal/backing/backing.go
package backing

import (
	"context"
	"sync"
)

// Backing durably holds the serialized room table as a single blob under a
// fixed key, overwritten wholesale on every commit. Durability is
// best-effort: the in-memory table is the authority.
type Backing interface {
	// Load returns the stored blob, or (nil, nil) when nothing is stored yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// MemoryBacking keeps the blob in process memory. It backs tests and
// single-process runs with no durability requirement.
type MemoryBacking struct {
	mu   sync.Mutex
	blob []byte
}

// NewMemoryBacking returns an empty in-memory backing.
func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{}
}

func (m *MemoryBacking) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryBacking) Save(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	return nil
}
