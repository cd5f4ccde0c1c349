package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/persistence"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory implementation of IKeySlotPersistence.
// This implementation is intended for TESTING ONLY.
//
// The key slot is lost when the process exits, which means every restart
// requires a new createKeys. Data is deep copied in and out.
type MemoryPersistence struct {
	mu     sync.RWMutex
	slot   *persistence.KeySlot
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Logs a loud warning since this should only be used for testing.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory persistence - the gated key pair will be lost on restart",
			"hint", "set BIOSIGNER_PERSISTENCE_TYPE=badger for durable storage")
	}
	return &MemoryPersistence{}
}

func (m *MemoryPersistence) SaveKeySlot(slot *persistence.KeySlot) error {
	if slot == nil {
		return fmt.Errorf("cannot save nil KeySlot")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.slot = slot.Clone()
	return nil
}

func (m *MemoryPersistence) LoadKeySlot() (*persistence.KeySlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	return m.slot.Clone(), nil
}

func (m *MemoryPersistence) DeleteKeySlot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.slot = nil
	return nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
