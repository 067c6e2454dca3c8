// Package board holds the in-memory kanban model: the entity store, the
// transient UI session and the command processor that guards both.
package board

import (
	"slices"
	"time"

	"kanban-app/domain"
)

const (
	seedBoardID    domain.ID = 1
	seedBoardTitle           = "Main Board"
)

// Store owns the canonical Boards → Columns → Tasks tree and the pointer to
// the current board. It is not safe for concurrent use; Processor
// serialises access to it.
type Store struct {
	boards         []domain.Board
	currentBoardID domain.ID
	ids            *domain.IDGenerator
	now            func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for Task.CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store seeded with a single current "Main Board".
func New(opts ...Option) *Store {
	s := NewEmpty(opts...)
	s.boards = append(s.boards, domain.Board{ID: seedBoardID, Title: seedBoardTitle, Columns: []domain.Column{}})
	s.currentBoardID = seedBoardID
	s.ids.Observe(seedBoardID)
	return s
}

// NewEmpty returns a store without boards.
func NewEmpty(opts ...Option) *Store {
	s := &Store{
		boards: []domain.Board{},
		ids:    domain.NewIDGenerator(domain.NoID),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentBoardID returns the ID of the current board, or NoID.
func (s *Store) CurrentBoardID() domain.ID {
	return s.currentBoardID
}

// FindBoard returns the board with the given ID.
func (s *Store) FindBoard(id domain.ID) (*domain.Board, bool) {
	for i := range s.boards {
		if s.boards[i].ID == id {
			return &s.boards[i], true
		}
	}
	return nil, false
}

// FindColumn returns a column of the given board.
func (s *Store) FindColumn(boardID, columnID domain.ID) (*domain.Column, bool) {
	b, ok := s.FindBoard(boardID)
	if !ok {
		return nil, false
	}
	return findColumn(b, columnID)
}

// FindTask returns a task of the given column.
func (s *Store) FindTask(boardID, columnID, taskID domain.ID) (*domain.Task, bool) {
	c, ok := s.FindColumn(boardID, columnID)
	if !ok {
		return nil, false
	}
	i := taskIndex(c, taskID)
	if i < 0 {
		return nil, false
	}
	return &c.Tasks[i], true
}

// CreateBoard appends a new empty board and makes it current.
func (s *Store) CreateBoard(title string) domain.Board {
	b := domain.Board{ID: s.ids.Next(), Title: title, Columns: []domain.Column{}}
	s.boards = append(s.boards, b)
	s.currentBoardID = b.ID
	return b.Clone()
}

// SetCurrentBoard points the store at an existing board.
func (s *Store) SetCurrentBoard(boardID domain.ID) bool {
	if _, ok := s.FindBoard(boardID); !ok {
		return false
	}
	s.currentBoardID = boardID
	return true
}

// RenameBoard replaces the title of a board.
func (s *Store) RenameBoard(boardID domain.ID, title string) bool {
	b, ok := s.FindBoard(boardID)
	if !ok {
		return false
	}
	b.Title = title
	return true
}

// CreateColumn appends an empty column to a board.
func (s *Store) CreateColumn(boardID domain.ID, title string) (domain.Column, bool) {
	b, ok := s.FindBoard(boardID)
	if !ok {
		return domain.Column{}, false
	}
	c := domain.Column{ID: s.ids.Next(), Title: title, Tasks: []domain.Task{}}
	b.Columns = append(b.Columns, c)
	return c.Clone(), true
}

// RenameColumn replaces the title of a column.
func (s *Store) RenameColumn(boardID, columnID domain.ID, title string) bool {
	c, ok := s.FindColumn(boardID, columnID)
	if !ok {
		return false
	}
	c.Title = title
	return true
}

// CreateTask appends a new task to a column. CreatedAt is taken from the
// store clock.
func (s *Store) CreateTask(boardID, columnID domain.ID, fields domain.TaskFields) (domain.Task, bool) {
	c, ok := s.FindColumn(boardID, columnID)
	if !ok {
		return domain.Task{}, false
	}
	f := fields.Normalize()
	t := domain.Task{
		ID:          s.ids.Next(),
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		Tags:        f.Tags,
		Images:      f.Images,
		CreatedAt:   s.now(),
	}
	c.Tasks = append(c.Tasks, t)
	return t.Clone(), true
}

// ReplaceTask overwrites every mutable field of a task in place. ID,
// CreatedAt and the task's position are kept; omitted fields end up empty.
func (s *Store) ReplaceTask(boardID, columnID, taskID domain.ID, fields domain.TaskFields) (domain.Task, bool) {
	t, ok := s.FindTask(boardID, columnID, taskID)
	if !ok {
		return domain.Task{}, false
	}
	f := fields.Normalize()
	*t = domain.Task{
		ID:          t.ID,
		Title:       f.Title,
		Description: f.Description,
		Priority:    f.Priority,
		Tags:        f.Tags,
		Images:      f.Images,
		CreatedAt:   t.CreatedAt,
	}
	return t.Clone(), true
}

// DeleteTask removes a task, keeping the order of the remaining ones.
func (s *Store) DeleteTask(boardID, columnID, taskID domain.ID) bool {
	c, ok := s.FindColumn(boardID, columnID)
	if !ok {
		return false
	}
	i := taskIndex(c, taskID)
	if i < 0 {
		return false
	}
	c.Tasks = slices.Delete(c.Tasks, i, i+1)
	return true
}

// MoveTask takes a task out of one column and inserts it into another (or
// the same) column at toIndex. The index is resolved against the
// destination after removal; a negative or out-of-range index appends.
func (s *Store) MoveTask(boardID, fromColumnID, toColumnID, taskID domain.ID, toIndex int) bool {
	b, ok := s.FindBoard(boardID)
	if !ok {
		return false
	}
	from, ok := findColumn(b, fromColumnID)
	if !ok {
		return false
	}
	to, ok := findColumn(b, toColumnID)
	if !ok {
		return false
	}
	i := taskIndex(from, taskID)
	if i < 0 {
		return false
	}

	t := from.Tasks[i]
	from.Tasks = slices.Delete(from.Tasks, i, i+1)
	if toIndex < 0 || toIndex >= len(to.Tasks) {
		to.Tasks = append(to.Tasks, t)
	} else {
		to.Tasks = slices.Insert(to.Tasks, toIndex, t)
	}
	return true
}

// Boards returns a deep copy of every board in creation order.
func (s *Store) Boards() []domain.Board {
	out := make([]domain.Board, len(s.boards))
	for i, b := range s.boards {
		out[i] = b.Clone()
	}
	return out
}

func findColumn(b *domain.Board, columnID domain.ID) (*domain.Column, bool) {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return &b.Columns[i], true
		}
	}
	return nil, false
}

func taskIndex(c *domain.Column, taskID domain.ID) int {
	return slices.IndexFunc(c.Tasks, func(t domain.Task) bool { return t.ID == taskID })
}
