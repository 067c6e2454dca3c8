package board

import (
	"kanban-app/domain"
)

// Snapshot is the complete persistent state of a Store in plain,
// serialisable form.
type Snapshot struct {
	Boards         []domain.Board `json:"boards"`
	CurrentBoardID domain.ID      `json:"currentBoardId"`
	LastID         domain.ID      `json:"lastId"`
}

// Snapshot captures the store state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Boards:         s.Boards(),
		CurrentBoardID: s.currentBoardID,
		LastID:         s.ids.Last(),
	}
}

// Restore rebuilds a store from a snapshot. The ID generator resumes after
// the largest ID seen, and a dangling current board falls back to the first
// board (or none).
func Restore(snap Snapshot, opts ...Option) *Store {
	s := NewEmpty(opts...)
	s.ids.Observe(snap.LastID)
	for _, b := range snap.Boards {
		b = b.Clone()
		if b.Columns == nil {
			b.Columns = []domain.Column{}
		}
		for i := range b.Columns {
			if b.Columns[i].Tasks == nil {
				b.Columns[i].Tasks = []domain.Task{}
			}
		}
		s.boards = append(s.boards, b)
		s.ids.Observe(b.MaxID())
	}
	if _, ok := s.FindBoard(snap.CurrentBoardID); ok {
		s.currentBoardID = snap.CurrentBoardID
	} else if len(s.boards) > 0 {
		s.currentBoardID = s.boards[0].ID
	}
	return s
}
