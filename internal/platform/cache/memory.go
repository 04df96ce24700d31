package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is a process-local LRU with per-entry expiry. Entries are only
// invalidated in this process, so it suits single-replica deployments.
type Memory struct {
	lru *expirable.LRU[string, []byte]

	// mu orders generation bumps against conditional writes.
	mu   sync.Mutex
	gens map[uuid.UUID]uint64
}

func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{
		lru:  expirable.NewLRU[string, []byte](size, nil, ttl),
		gens: make(map[uuid.UUID]uint64),
	}
}

func (m *Memory) Get(_ context.Context, doctorID uuid.UUID, date string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key(doctorID, date))
	return v, ok, nil
}

func (m *Memory) Version(_ context.Context, doctorID uuid.UUID) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[doctorID], nil
}

// Set stores payload only while the doctor is still at version.
func (m *Memory) Set(_ context.Context, doctorID uuid.UUID, date string, payload []byte, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[doctorID] != version {
		return nil
	}
	m.lru.Add(key(doctorID, date), payload)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, doctorID uuid.UUID, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[doctorID]++
	m.lru.Remove(key(doctorID, date))
	return nil
}

func (m *Memory) InvalidateDoctor(_ context.Context, doctorID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[doctorID]++
	prefix := doctorPrefix(doctorID)
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Len() int { return m.lru.Len() }
