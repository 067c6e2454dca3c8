package api

import (
	"fmt"

	"github.com/bytedance/sonic"

	"kanban-app/board"
	"kanban-app/domain"
)

type commandDecoder func(data []byte) (board.Command, error)

var commandDecoders = map[string]commandDecoder{
	board.CmdAddBoard:              decodeInto[board.AddBoard],
	board.CmdRenameBoard:           decodeInto[board.RenameBoard],
	board.CmdSetCurrentBoard:       decodeInto[board.SetCurrentBoard],
	board.CmdAddColumn:             decodeInto[board.AddColumn],
	board.CmdRenameColumn:          decodeInto[board.RenameColumn],
	board.CmdAddTask:               decodeInto[board.AddTask],
	board.CmdUpdateTask:            decodeInto[board.UpdateTask],
	board.CmdDeleteTask:            decodeInto[board.DeleteTask],
	board.CmdMoveTask:              decodeInto[board.MoveTask],
	board.CmdOpenBoardForm:         decodeInto[board.OpenBoardForm],
	board.CmdOpenBoardFormForEdit:  decodeInto[board.OpenBoardFormForEdit],
	board.CmdCloseBoardForm:        decodeInto[board.CloseBoardForm],
	board.CmdOpenColumnForm:        decodeInto[board.OpenColumnForm],
	board.CmdOpenColumnFormForEdit: decodeInto[board.OpenColumnFormForEdit],
	board.CmdCloseColumnForm:       decodeInto[board.CloseColumnForm],
	board.CmdOpenTaskFormForCreate: decodeInto[board.OpenTaskFormForCreate],
	board.CmdOpenTaskFormForEdit:   decodeInto[board.OpenTaskFormForEdit],
	board.CmdCloseTaskForm:         decodeInto[board.CloseTaskForm],
}

func decodeInto[T board.Command](data []byte) (board.Command, error) {
	var cmd T
	if len(data) > 0 && string(data) != "null" {
		if err := sonic.Unmarshal(data, &cmd); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// decodeCommand turns a wire envelope into a board command.
func decodeCommand(in domain.Command) (board.Command, error) {
	dec, ok := commandDecoders[in.Type]
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", in.Type)
	}
	cmd, err := dec(in.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", in.Type, err)
	}
	return cmd, nil
}

// decodeCommands decodes the whole batch or nothing.
func decodeCommands(in []domain.Command) ([]board.Command, error) {
	out := make([]board.Command, len(in))
	for i := range in {
		cmd, err := decodeCommand(in[i])
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out[i] = cmd
	}
	return out, nil
}
