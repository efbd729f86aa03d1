package storage

import (
	"context"
	"sync"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
)

// Memory is an in-process store for tests and dry runs.
type Memory struct {
	mu    sync.Mutex
	sets  map[string]adjust.AdjustmentSet
	saves int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{sets: make(map[string]adjust.AdjustmentSet)}
}

// LoadMetadata implements client.MetadataStore.
func (m *Memory) LoadMetadata(ctx context.Context, imagePath string) (*adjust.AdjustmentSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[imagePath]
	if !ok {
		return nil, nil
	}
	out := set.Clone()
	return &out, nil
}

// SaveMetadata implements client.MetadataStore.
func (m *Memory) SaveMetadata(ctx context.Context, imagePath string, set adjust.AdjustmentSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[imagePath] = set.Clone()
	m.saves++
	return nil
}

// Saves returns how many times SaveMetadata succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
