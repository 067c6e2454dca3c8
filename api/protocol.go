package api

import "kanban-app/domain"

const postCommandMaxSize = 64 * 1024 // 64 KiB

// reasonDuplicate marks a command skipped because its idempotency key was
// already processed.
const reasonDuplicate = "duplicate"

// /POST /api/commands response body
type postCommandResponse struct {
	Outcomes []domain.CommandOutcome `json:"outcomes"`
	Error    string                  `json:"error,omitempty"`
}

// /GET /api/boards response body
type boardsResponse struct {
	Boards         []domain.Board `json:"boards"`
	CurrentBoardID domain.ID      `json:"currentBoardId"`
}
