// Package storage persists board snapshots and journals applied commands.
// The board engine itself never performs I/O; these types are driven by the
// HTTP layer after state has changed.
package storage

import (
	"context"
	"errors"
	"sync"

	"kanban-app/board"
)

// ErrSnapshotNotFound is returned by Load when nothing has been saved yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore saves and restores the full board state.
type SnapshotStore interface {
	Load(ctx context.Context) (board.Snapshot, error)
	Save(ctx context.Context, snap board.Snapshot) error
	Ping(ctx context.Context) error
}

// MemorySnapshots keeps the last saved snapshot in process memory.
type MemorySnapshots struct {
	mu    sync.Mutex
	snap  board.Snapshot
	saved bool
	saves int
}

// NewMemorySnapshots returns an empty in-memory store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{}
}

func (m *MemorySnapshots) Load(context.Context) (board.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return board.Snapshot{}, ErrSnapshotNotFound
	}
	return board.Restore(m.snap).Snapshot(), nil
}

func (m *MemorySnapshots) Save(_ context.Context, snap board.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = board.Restore(snap).Snapshot()
	m.saved = true
	m.saves++
	return nil
}

func (m *MemorySnapshots) Ping(context.Context) error { return nil }

// Saves returns how many times Save has been called.
func (m *MemorySnapshots) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
