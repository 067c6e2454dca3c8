package board

import "kanban-app/domain"

// Command is a request to change the store or the session. The set of
// commands is closed: every implementation lives in this file and is
// handled by Processor.Apply.
type Command interface {
	commandName() string
}

// AddBoard creates a board and makes it current.
type AddBoard struct {
	Title string `json:"title"`
}

// RenameBoard changes a board title.
type RenameBoard struct {
	BoardID domain.ID `json:"boardId"`
	Title   string    `json:"title"`
}

// SetCurrentBoard switches the current board.
type SetCurrentBoard struct {
	BoardID domain.ID `json:"boardId"`
}

// AddColumn appends a column to the current board.
type AddColumn struct {
	Title string `json:"title"`
}

// RenameColumn changes the title of a column on the current board.
type RenameColumn struct {
	ColumnID domain.ID `json:"columnId"`
	Title    string    `json:"title"`
}

// AddTask appends a task to a column on the current board.
type AddTask struct {
	ColumnID domain.ID         `json:"columnId"`
	Fields   domain.TaskFields `json:"task"`
}

// UpdateTask fully replaces the mutable fields of a task.
type UpdateTask struct {
	ColumnID domain.ID         `json:"columnId"`
	TaskID   domain.ID         `json:"taskId"`
	Fields   domain.TaskFields `json:"task"`
}

// DeleteTask removes a task.
type DeleteTask struct {
	ColumnID domain.ID `json:"columnId"`
	TaskID   domain.ID `json:"taskId"`
}

// MoveTask repositions a task. A nil ToIndex appends to the destination.
type MoveTask struct {
	FromColumnID domain.ID `json:"fromColumnId"`
	ToColumnID   domain.ID `json:"toColumnId"`
	TaskID       domain.ID `json:"taskId"`
	ToIndex      *int      `json:"toIndex,omitempty"`
}

// OpenBoardForm opens the board form for a new board.
type OpenBoardForm struct{}

// OpenBoardFormForEdit opens the board form for an existing board.
type OpenBoardFormForEdit struct {
	BoardID domain.ID `json:"boardId"`
}

// CloseBoardForm closes the board form.
type CloseBoardForm struct{}

// OpenColumnForm opens the column form for a new column.
type OpenColumnForm struct{}

// OpenColumnFormForEdit opens the column form for a column of the current board.
type OpenColumnFormForEdit struct {
	ColumnID domain.ID `json:"columnId"`
}

// CloseColumnForm closes the column form.
type CloseColumnForm struct{}

// OpenTaskFormForCreate opens the task form targeting a column.
type OpenTaskFormForCreate struct {
	ColumnID domain.ID `json:"columnId"`
}

// OpenTaskFormForEdit opens the task form for an existing task.
type OpenTaskFormForEdit struct {
	ColumnID domain.ID `json:"columnId"`
	TaskID   domain.ID `json:"taskId"`
}

// CloseTaskForm closes the task form and forgets the task and column it
// was opened for.
type CloseTaskForm struct{}

// Command names as used on the wire.
const (
	CmdAddBoard              = "add-board"
	CmdRenameBoard           = "rename-board"
	CmdSetCurrentBoard       = "set-current-board"
	CmdAddColumn             = "add-column"
	CmdRenameColumn          = "rename-column"
	CmdAddTask               = "add-task"
	CmdUpdateTask            = "update-task"
	CmdDeleteTask            = "delete-task"
	CmdMoveTask              = "move-task"
	CmdOpenBoardForm         = "open-board-form"
	CmdOpenBoardFormForEdit  = "open-board-form-for-edit"
	CmdCloseBoardForm        = "close-board-form"
	CmdOpenColumnForm        = "open-column-form"
	CmdOpenColumnFormForEdit = "open-column-form-for-edit"
	CmdCloseColumnForm       = "close-column-form"
	CmdOpenTaskFormForCreate = "open-task-form-for-create"
	CmdOpenTaskFormForEdit   = "open-task-form-for-edit"
	CmdCloseTaskForm         = "close-task-form"
)

func (AddBoard) commandName() string              { return CmdAddBoard }
func (RenameBoard) commandName() string           { return CmdRenameBoard }
func (SetCurrentBoard) commandName() string       { return CmdSetCurrentBoard }
func (AddColumn) commandName() string             { return CmdAddColumn }
func (RenameColumn) commandName() string          { return CmdRenameColumn }
func (AddTask) commandName() string               { return CmdAddTask }
func (UpdateTask) commandName() string            { return CmdUpdateTask }
func (DeleteTask) commandName() string            { return CmdDeleteTask }
func (MoveTask) commandName() string              { return CmdMoveTask }
func (OpenBoardForm) commandName() string         { return CmdOpenBoardForm }
func (OpenBoardFormForEdit) commandName() string  { return CmdOpenBoardFormForEdit }
func (CloseBoardForm) commandName() string        { return CmdCloseBoardForm }
func (OpenColumnForm) commandName() string        { return CmdOpenColumnForm }
func (OpenColumnFormForEdit) commandName() string { return CmdOpenColumnFormForEdit }
func (CloseColumnForm) commandName() string       { return CmdCloseColumnForm }
func (OpenTaskFormForCreate) commandName() string { return CmdOpenTaskFormForCreate }
func (OpenTaskFormForEdit) commandName() string   { return CmdOpenTaskFormForEdit }
func (CloseTaskForm) commandName() string         { return CmdCloseTaskForm }

// Name returns the wire name of a command.
func Name(cmd Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.commandName()
}

// Mutates reports whether a command can change persistent state. Form
// commands only touch the session.
func Mutates(cmd Command) bool {
	switch cmd.(type) {
	case AddBoard, RenameBoard, SetCurrentBoard, AddColumn, RenameColumn,
		AddTask, UpdateTask, DeleteTask, MoveTask:
		return true
	default:
		return false
	}
}
