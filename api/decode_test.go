package api

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"

	"kanban-app/board"
	"kanban-app/domain"
)

func TestDecodeCommand(t *testing.T) {
	two := 2
	tests := []struct {
		typ  string
		data string
		want board.Command
	}{
		{typ: board.CmdAddBoard, data: `{"title":"Roadmap"}`, want: board.AddBoard{Title: "Roadmap"}},
		{typ: board.CmdRenameBoard, data: `{"boardId":1,"title":"x"}`, want: board.RenameBoard{BoardID: 1, Title: "x"}},
		{typ: board.CmdSetCurrentBoard, data: `{"boardId":4}`, want: board.SetCurrentBoard{BoardID: 4}},
		{typ: board.CmdAddColumn, data: `{"title":"Todo"}`, want: board.AddColumn{Title: "Todo"}},
		{typ: board.CmdRenameColumn, data: `{"columnId":2,"title":"Done"}`, want: board.RenameColumn{ColumnID: 2, Title: "Done"}},
		{
			typ:  board.CmdAddTask,
			data: `{"columnId":2,"task":{"title":"t","priority":"high","tags":["a"]}}`,
			want: board.AddTask{ColumnID: 2, Fields: domain.TaskFields{Title: "t", Priority: domain.PriorityHigh, Tags: []string{"a"}}},
		},
		{
			typ:  board.CmdUpdateTask,
			data: `{"columnId":2,"taskId":3,"task":{"title":"u"}}`,
			want: board.UpdateTask{ColumnID: 2, TaskID: 3, Fields: domain.TaskFields{Title: "u"}},
		},
		{typ: board.CmdDeleteTask, data: `{"columnId":2,"taskId":3}`, want: board.DeleteTask{ColumnID: 2, TaskID: 3}},
		{typ: board.CmdMoveTask, data: `{"fromColumnId":2,"toColumnId":5,"taskId":3}`, want: board.MoveTask{FromColumnID: 2, ToColumnID: 5, TaskID: 3}},
		{typ: board.CmdMoveTask, data: `{"fromColumnId":2,"toColumnId":5,"taskId":3,"toIndex":2}`, want: board.MoveTask{FromColumnID: 2, ToColumnID: 5, TaskID: 3, ToIndex: &two}},
		{typ: board.CmdOpenBoardForm, want: board.OpenBoardForm{}},
		{typ: board.CmdOpenBoardFormForEdit, data: `{"boardId":1}`, want: board.OpenBoardFormForEdit{BoardID: 1}},
		{typ: board.CmdCloseBoardForm, data: `null`, want: board.CloseBoardForm{}},
		{typ: board.CmdOpenColumnForm, data: `{}`, want: board.OpenColumnForm{}},
		{typ: board.CmdOpenColumnFormForEdit, data: `{"columnId":2}`, want: board.OpenColumnFormForEdit{ColumnID: 2}},
		{typ: board.CmdCloseColumnForm, want: board.CloseColumnForm{}},
		{typ: board.CmdOpenTaskFormForCreate, data: `{"columnId":2}`, want: board.OpenTaskFormForCreate{ColumnID: 2}},
		{typ: board.CmdOpenTaskFormForEdit, data: `{"columnId":2,"taskId":3}`, want: board.OpenTaskFormForEdit{ColumnID: 2, TaskID: 3}},
		{typ: board.CmdCloseTaskForm, want: board.CloseTaskForm{}},
	}
	if len(commandDecoders) != 18 {
		t.Fatalf("expected a decoder per command, got %d", len(commandDecoders))
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := decodeCommand(domain.Command{Type: tt.typ, Data: sonic.NoCopyRawMessage(tt.data)})
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("command mismatch (-want +got):\n%s", diff)
			}
			if board.Name(got) != tt.typ {
				t.Fatalf("decoded %s into %s", tt.typ, board.Name(got))
			}
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	if _, err := decodeCommand(domain.Command{Type: "drop-database"}); err == nil || !strings.Contains(err.Error(), "unknown command type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if _, err := decodeCommand(domain.Command{Type: board.CmdAddBoard, Data: sonic.NoCopyRawMessage(`{"title":5}`)}); err == nil {
		t.Fatalf("expected payload error")
	}
}

func TestDecodeCommandsAllOrNothing(t *testing.T) {
	in := []domain.Command{
		{Type: board.CmdAddBoard, Data: sonic.NoCopyRawMessage(`{"title":"a"}`)},
		{Type: "nope"},
	}
	cmds, err := decodeCommands(in)
	if err == nil || cmds != nil {
		t.Fatalf("expected batch rejection, got %v %v", cmds, err)
	}
	if !strings.Contains(err.Error(), "command 1") {
		t.Fatalf("expected error to carry the index, got %v", err)
	}
}
