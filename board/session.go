package board

import "kanban-app/domain"

// Modal names the form that is currently open.
type Modal string

const (
	ModalNone       Modal = "none"
	ModalTaskForm   Modal = "taskForm"
	ModalBoardForm  Modal = "boardForm"
	ModalColumnForm Modal = "columnForm"
)

// EditingTask is the task open in the task form together with its column.
type EditingTask struct {
	Task     domain.Task `json:"task"`
	ColumnID domain.ID   `json:"columnId"`
}

// Session is transient UI focus. It is never part of a Snapshot.
type Session struct {
	CurrentBoardID domain.ID      `json:"currentBoardId"`
	ActiveModal    Modal          `json:"activeModal"`
	EditingTask    *EditingTask   `json:"editingTask"`
	EditingBoard   *domain.Board  `json:"editingBoard"`
	EditingColumn  *domain.Column `json:"editingColumn"`
	SelectedColumn *domain.Column `json:"selectedColumn"`
}

type session struct {
	activeModal    Modal
	editingTask    *EditingTask
	editingBoard   *domain.Board
	editingColumn  *domain.Column
	selectedColumn *domain.Column
}

func newSession() session {
	return session{activeModal: ModalNone}
}

func (s *session) openTaskFormForCreate(col domain.Column) {
	s.selectedColumn = &col
	s.editingTask = nil
	s.activeModal = ModalTaskForm
}

func (s *session) openTaskFormForEdit(task domain.Task, col domain.Column) {
	s.editingTask = &EditingTask{Task: task, ColumnID: col.ID}
	s.selectedColumn = &col
	s.activeModal = ModalTaskForm
}

func (s *session) closeTaskForm() {
	s.activeModal = ModalNone
	s.editingTask = nil
	s.selectedColumn = nil
}

func (s *session) openBoardForm(editing *domain.Board) {
	s.editingBoard = editing
	s.activeModal = ModalBoardForm
}

func (s *session) closeBoardForm() {
	s.activeModal = ModalNone
	s.editingBoard = nil
}

func (s *session) openColumnForm(editing *domain.Column) {
	s.editingColumn = editing
	s.activeModal = ModalColumnForm
}

func (s *session) closeColumnForm() {
	s.activeModal = ModalNone
	s.editingColumn = nil
}

// view returns a copy detached from the session's own pointers.
func (s *session) view(currentBoardID domain.ID) Session {
	out := Session{CurrentBoardID: currentBoardID, ActiveModal: s.activeModal}
	if s.editingTask != nil {
		et := EditingTask{Task: s.editingTask.Task.Clone(), ColumnID: s.editingTask.ColumnID}
		out.EditingTask = &et
	}
	if s.editingBoard != nil {
		b := s.editingBoard.Clone()
		out.EditingBoard = &b
	}
	if s.editingColumn != nil {
		c := s.editingColumn.Clone()
		out.EditingColumn = &c
	}
	if s.selectedColumn != nil {
		c := s.selectedColumn.Clone()
		out.SelectedColumn = &c
	}
	return out
}
