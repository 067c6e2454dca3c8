package domain

import "github.com/bytedance/sonic"

// Command represents a write request as it travels over the wire. Data is
// decoded into a concrete board command according to Type.
type Command struct {
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp,omitempty"`
}

// CommandOutcome reports what happened to one submitted command.
type CommandOutcome struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Type           string `json:"type"`
	Applied        bool   `json:"applied"`
	Reason         string `json:"reason,omitempty"`
	ID             ID     `json:"id,omitempty"`
}

// JournalEntry is one or more applied batches as recorded by a command
// journal. Commands are in apply order and Seq is the apply sequence number
// of the last batch; readers order entries by Seq, not by arrival.
type JournalEntry struct {
	Seq       uint64    `json:"seq"`
	Commands  []Command `json:"commands"`
	Timestamp int64     `json:"timestamp"`
}

// BoardEvent announces that applied commands changed the board state.
type BoardEvent struct {
	Type           string   `json:"type"`
	CurrentBoardID ID       `json:"currentBoardId"`
	Commands       []string `json:"commands"`
	Time           int64    `json:"time"`
}

// BoardUpdated is the BoardEvent type published after every applied batch.
const BoardUpdated = "board-updated"
