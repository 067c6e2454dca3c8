package api

import (
	"context"

	"kanban-app/board"
	"kanban-app/domain"
)

// Engine is the board state the handlers read and write.
type Engine interface {
	ApplySequenced(cmds []board.Command, stamp func(seq uint64)) []board.Result
	CurrentBoard() (domain.Board, bool)
	ColumnByID(boardID, columnID domain.ID) (domain.Column, bool)
	Session() board.Session
	Snapshot() board.Snapshot
}

// HealthChecker reports whether the snapshot backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Scheduler accepts applied batches for background persistence.
type Scheduler interface {
	Schedule(batch Batch)
}

// Deduper prevents processing of duplicate commands.
type Deduper interface {
	// AddMany records the keys and reports, per key, whether it was new.
	AddMany(ctx context.Context, scope string, keys []string) ([]bool, error)
	// Remove deletes a previously added key, used when a batch is rejected
	// after its keys were recorded.
	Remove(ctx context.Context, scope, key string) error
}

// Batch is a group of applied commands waiting to be persisted. Seq is the
// engine's apply sequence number for the batch.
type Batch struct {
	Seq      uint64
	Commands []domain.Command
}

// SnapshotSaver persists the full board state.
type SnapshotSaver interface {
	Save(ctx context.Context, snap board.Snapshot) error
}

// Journal records applied commands.
type Journal interface {
	Append(ctx context.Context, entry domain.JournalEntry) error
}

// Notifier announces state changes to other processes.
type Notifier interface {
	Publish(ctx context.Context, ev domain.BoardEvent) error
}
