// Package store keeps the latest snapshot of each game so a lobby can be
// rebuilt after its actor goes away.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
)

var ErrNotFound = errors.New("game not found")

type Record struct {
	Code    string
	Version int
	Game    engine.Game
}

type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, code string) (Record, error)
	Close() error
}

// Memory is a Store backed by a map. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Save keeps rec unless a newer version is already stored.
func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.records[rec.Code]; ok && cur.Version > rec.Version {
		return nil
	}
	m.records[rec.Code] = rec
	return nil
}

func (m *Memory) Load(_ context.Context, code string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[code]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Close() error { return nil }
