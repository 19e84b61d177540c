package repository

import (
	"context"
	"sync"
	"time"

	"pawbook/internal/models"
)

type memoryEntry struct {
	slots     []models.Slot
	expiresAt time.Time
}

// MemorySlotCache is the in-process fallback cache. Entries are grouped
// by provider so invalidation stays one map delete.
type MemorySlotCache struct {
	mu        sync.RWMutex
	providers map[string]map[string]memoryEntry
}

func NewMemorySlotCache() *MemorySlotCache {
	return &MemorySlotCache{providers: make(map[string]map[string]memoryEntry)}
}

func (m *MemorySlotCache) GetSlots(ctx context.Context, key string) ([]models.Slot, bool, error) {
	m.mu.RLock()
	entry, ok := m.providers[providerOfKey(key)][key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.providers[providerOfKey(key)], key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.slots, true, nil
}

func (m *MemorySlotCache) SetSlots(ctx context.Context, key string, slots []models.Slot, ttl time.Duration) error {
	provider := providerOfKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.providers[provider] == nil {
		m.providers[provider] = make(map[string]memoryEntry)
	}
	m.providers[provider][key] = memoryEntry{
		slots:     append([]models.Slot(nil), slots...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (m *MemorySlotCache) InvalidateProvider(ctx context.Context, providerID string) error {
	m.mu.Lock()
	delete(m.providers, providerID)
	m.mu.Unlock()
	return nil
}
