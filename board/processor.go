package board

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanban-app/domain"
)

// Reason explains why a command had no effect.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonInvalid  Reason = "invalid"
	ReasonNotFound Reason = "not_found"
)

// Result reports the outcome of a command. Commands never fail loudly: a
// rejected command leaves the state untouched and says why here.
type Result struct {
	Applied bool
	Reason  Reason
	Board   *domain.Board
	Column  *domain.Column
	Task    *domain.Task
}

// CreatedID returns the ID of the entity a command created, if any.
func (r Result) CreatedID() domain.ID {
	switch {
	case r.Task != nil:
		return r.Task.ID
	case r.Column != nil:
		return r.Column.ID
	case r.Board != nil:
		return r.Board.ID
	}
	return domain.NoID
}

var (
	applied  = Result{Applied: true}
	invalid  = Result{Reason: ReasonInvalid}
	notFound = Result{Reason: ReasonNotFound}
)

// Processor is the single entry point for commands and queries. All calls
// are serialised behind one mutex, so each command is atomic with respect
// to every query.
type Processor struct {
	mu      sync.Mutex
	store   *Store
	session session
	seq     uint64
}

// NewProcessor wraps store. The processor takes ownership of it.
func NewProcessor(store *Store) *Processor {
	if store == nil {
		panic("board.NewProcessor: store is nil")
	}
	return &Processor{store: store, session: newSession()}
}

// Apply validates and applies one command.
func (p *Processor) Apply(cmd Command) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apply(cmd)
}

// ApplyAll applies commands in order without letting any query observe an
// intermediate state.
func (p *Processor) ApplyAll(cmds []Command) []Result {
	return p.ApplySequenced(cmds, nil)
}

// ApplySequenced is ApplyAll that numbers each batch in apply order, starting
// at 1. stamp, if set, runs before the lock is released, so anything it
// records is ordered the same way the batches were applied. stamp must not
// call back into the processor.
func (p *Processor) ApplySequenced(cmds []Command, stamp func(seq uint64)) []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(cmds))
	for i, cmd := range cmds {
		out[i] = p.apply(cmd)
	}
	p.seq++
	if stamp != nil {
		stamp(p.seq)
	}
	return out
}

func (p *Processor) apply(cmd Command) Result {
	res := p.dispatch(cmd)
	if !res.Applied {
		log.WithFields(log.Fields{"command": Name(cmd), "reason": res.Reason}).Debug("command ignored")
	}
	return res
}

func (p *Processor) dispatch(cmd Command) Result {
	s := p.store
	boardID := s.CurrentBoardID()

	switch c := cmd.(type) {
	case AddBoard:
		title, ok := required(c.Title)
		if !ok {
			return invalid
		}
		b := s.CreateBoard(title)
		return Result{Applied: true, Board: &b}

	case RenameBoard:
		title, ok := required(c.Title)
		if !ok || c.BoardID == domain.NoID {
			return invalid
		}
		return outcome(s.RenameBoard(c.BoardID, title))

	case SetCurrentBoard:
		if c.BoardID == domain.NoID {
			return invalid
		}
		return outcome(s.SetCurrentBoard(c.BoardID))

	case AddColumn:
		title, ok := required(c.Title)
		if !ok || boardID == domain.NoID {
			return invalid
		}
		col, ok := s.CreateColumn(boardID, title)
		if !ok {
			return notFound
		}
		return Result{Applied: true, Column: &col}

	case RenameColumn:
		title, ok := required(c.Title)
		if !ok || c.ColumnID == domain.NoID {
			return invalid
		}
		return outcome(s.RenameColumn(boardID, c.ColumnID, title))

	case AddTask:
		title, ok := required(c.Fields.Title)
		if !ok || c.ColumnID == domain.NoID {
			return invalid
		}
		fields := c.Fields
		fields.Title = title
		t, ok := s.CreateTask(boardID, c.ColumnID, fields)
		if !ok {
			return notFound
		}
		return Result{Applied: true, Task: &t}

	case UpdateTask:
		title, ok := required(c.Fields.Title)
		if !ok || c.ColumnID == domain.NoID || c.TaskID == domain.NoID {
			return invalid
		}
		fields := c.Fields
		fields.Title = title
		t, ok := s.ReplaceTask(boardID, c.ColumnID, c.TaskID, fields)
		if !ok {
			return notFound
		}
		return Result{Applied: true, Task: &t}

	case DeleteTask:
		if c.ColumnID == domain.NoID || c.TaskID == domain.NoID {
			return invalid
		}
		return outcome(s.DeleteTask(boardID, c.ColumnID, c.TaskID))

	case MoveTask:
		if c.FromColumnID == domain.NoID || c.ToColumnID == domain.NoID || c.TaskID == domain.NoID {
			return invalid
		}
		toIndex := -1
		if c.ToIndex != nil {
			toIndex = *c.ToIndex
		}
		return outcome(s.MoveTask(boardID, c.FromColumnID, c.ToColumnID, c.TaskID, toIndex))

	case OpenBoardForm:
		p.session.openBoardForm(nil)
		return applied

	case OpenBoardFormForEdit:
		if c.BoardID == domain.NoID {
			return invalid
		}
		b, ok := s.FindBoard(c.BoardID)
		if !ok {
			return notFound
		}
		cp := b.Clone()
		p.session.openBoardForm(&cp)
		return applied

	case CloseBoardForm:
		p.session.closeBoardForm()
		return applied

	case OpenColumnForm:
		if boardID == domain.NoID {
			return invalid
		}
		p.session.openColumnForm(nil)
		return applied

	case OpenColumnFormForEdit:
		if c.ColumnID == domain.NoID {
			return invalid
		}
		col, ok := s.FindColumn(boardID, c.ColumnID)
		if !ok {
			return notFound
		}
		cp := col.Clone()
		p.session.openColumnForm(&cp)
		return applied

	case CloseColumnForm:
		p.session.closeColumnForm()
		return applied

	case OpenTaskFormForCreate:
		if c.ColumnID == domain.NoID {
			return invalid
		}
		col, ok := s.FindColumn(boardID, c.ColumnID)
		if !ok {
			return notFound
		}
		p.session.openTaskFormForCreate(col.Clone())
		return applied

	case OpenTaskFormForEdit:
		if c.ColumnID == domain.NoID || c.TaskID == domain.NoID {
			return invalid
		}
		col, ok := s.FindColumn(boardID, c.ColumnID)
		if !ok {
			return notFound
		}
		i := taskIndex(col, c.TaskID)
		if i < 0 {
			return notFound
		}
		p.session.openTaskFormForEdit(col.Tasks[i].Clone(), col.Clone())
		return applied

	case CloseTaskForm:
		p.session.closeTaskForm()
		return applied

	default:
		return invalid
	}
}

// CurrentBoard returns the current board, if it is set and still exists.
func (p *Processor) CurrentBoard() (domain.Board, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.store.FindBoard(p.store.CurrentBoardID())
	if !ok {
		return domain.Board{}, false
	}
	return b.Clone(), true
}

// ColumnByID looks a column up within the given board.
func (p *Processor) ColumnByID(boardID, columnID domain.ID) (domain.Column, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.store.FindColumn(boardID, columnID)
	if !ok {
		return domain.Column{}, false
	}
	return c.Clone(), true
}

// Boards returns every board for navigation.
func (p *Processor) Boards() []domain.Board {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Boards()
}

// Session returns the current UI session.
func (p *Processor) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.view(p.store.CurrentBoardID())
}

// Snapshot captures the persistent state.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Snapshot()
}

func required(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func outcome(ok bool) Result {
	if ok {
		return applied
	}
	return notFound
}
