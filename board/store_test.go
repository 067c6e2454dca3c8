package board

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"kanban-app/domain"
)

func fixedClock(ts time.Time) Option {
	return WithClock(func() time.Time { return ts })
}

func taskIDs(c *domain.Column) []domain.ID {
	ids := make([]domain.ID, len(c.Tasks))
	for i, t := range c.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// newStoreWithTasks builds the seeded board with two columns; the first
// holds n tasks.
func newStoreWithTasks(t *testing.T, n int) (*Store, domain.ID, domain.ID, []domain.ID) {
	t.Helper()
	s := New(fixedClock(time.Unix(100, 0)))
	a, ok := s.CreateColumn(seedBoardID, "A")
	if !ok {
		t.Fatalf("create column A")
	}
	b, ok := s.CreateColumn(seedBoardID, "B")
	if !ok {
		t.Fatalf("create column B")
	}
	ids := make([]domain.ID, 0, n)
	for i := 0; i < n; i++ {
		task, ok := s.CreateTask(seedBoardID, a.ID, domain.TaskFields{Title: "t"})
		if !ok {
			t.Fatalf("create task %d", i)
		}
		ids = append(ids, task.ID)
	}
	return s, a.ID, b.ID, ids
}

func TestNewSeedsMainBoard(t *testing.T) {
	s := New()
	if s.CurrentBoardID() != seedBoardID {
		t.Fatalf("expected seeded board to be current, got %d", s.CurrentBoardID())
	}
	b, ok := s.FindBoard(seedBoardID)
	if !ok || b.Title != "Main Board" || len(b.Columns) != 0 {
		t.Fatalf("unexpected seed board: %#v", b)
	}
	next := s.CreateBoard("Second")
	if next.ID <= seedBoardID {
		t.Fatalf("expected id after seed, got %d", next.ID)
	}
}

func TestCreateBoardBecomesCurrent(t *testing.T) {
	s := NewEmpty()
	var last domain.Board
	for _, title := range []string{"one", "two", "three"} {
		last = s.CreateBoard(title)
	}
	if s.CurrentBoardID() != last.ID {
		t.Fatalf("expected current board %d, got %d", last.ID, s.CurrentBoardID())
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(fixedClock(created))
	col, _ := s.CreateColumn(seedBoardID, "Todo")

	task, ok := s.CreateTask(seedBoardID, col.ID, domain.TaskFields{Title: "Write docs"})
	if !ok {
		t.Fatalf("create task")
	}
	want := domain.Task{
		ID:        task.ID,
		Title:     "Write docs",
		Priority:  domain.PriorityMedium,
		Tags:      []string{},
		Images:    []string{},
		CreatedAt: created,
	}
	if diff := cmp.Diff(want, task); diff != "" {
		t.Fatalf("task mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateOnMissingParentsIsNoop(t *testing.T) {
	s := New()
	before := s.Snapshot()

	if _, ok := s.CreateColumn(99, "x"); ok {
		t.Fatalf("expected column creation on missing board to fail")
	}
	if _, ok := s.CreateTask(seedBoardID, 99, domain.TaskFields{Title: "x"}); ok {
		t.Fatalf("expected task creation on missing column to fail")
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestReplaceTaskKeepsIdentityAndPosition(t *testing.T) {
	s, colA, _, ids := newStoreWithTasks(t, 3)
	orig, _ := s.FindTask(seedBoardID, colA, ids[1])
	origCreated := orig.CreatedAt

	// Seed tags and a description so the replace has something to drop.
	s.ReplaceTask(seedBoardID, colA, ids[1], domain.TaskFields{
		Title: "first", Description: "desc", Priority: domain.PriorityHigh, Tags: []string{"x"}, Images: []string{"a.png"},
	})
	got, ok := s.ReplaceTask(seedBoardID, colA, ids[1], domain.TaskFields{Title: "second"})
	if !ok {
		t.Fatalf("replace task")
	}

	if got.ID != ids[1] || !got.CreatedAt.Equal(origCreated) {
		t.Fatalf("identity changed: %#v", got)
	}
	if got.Description != "" || len(got.Tags) != 0 || len(got.Images) != 0 || got.Priority != domain.PriorityMedium {
		t.Fatalf("expected omitted fields to be cleared, got %#v", got)
	}
	c, _ := s.FindColumn(seedBoardID, colA)
	if c.Tasks[1].ID != ids[1] {
		t.Fatalf("task moved during replace: %v", taskIDs(c))
	}
}

func TestReplaceMissingTaskIsNoop(t *testing.T) {
	s, colA, _, _ := newStoreWithTasks(t, 1)
	if _, ok := s.ReplaceTask(seedBoardID, colA, 12345, domain.TaskFields{Title: "x"}); ok {
		t.Fatalf("expected replace of missing task to fail")
	}
}

func TestDeleteTaskPreservesOrder(t *testing.T) {
	s, colA, _, ids := newStoreWithTasks(t, 4)
	if !s.DeleteTask(seedBoardID, colA, ids[1]) {
		t.Fatalf("delete task")
	}
	if s.DeleteTask(seedBoardID, colA, ids[1]) {
		t.Fatalf("second delete should be a no-op")
	}
	c, _ := s.FindColumn(seedBoardID, colA)
	want := []domain.ID{ids[0], ids[2], ids[3]}
	if diff := cmp.Diff(want, taskIDs(c)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDeleteCount(t *testing.T) {
	s, colA, _, ids := newStoreWithTasks(t, 5)
	deletes := []domain.ID{ids[0], ids[0], 999, ids[4]}
	for _, id := range deletes {
		s.DeleteTask(seedBoardID, colA, id)
	}
	c, _ := s.FindColumn(seedBoardID, colA)
	if len(c.Tasks) != 3 {
		t.Fatalf("expected 5 creations minus 2 effective deletions, got %d tasks", len(c.Tasks))
	}
}

func TestMoveTask(t *testing.T) {
	tests := []struct {
		name      string
		sameCol   bool
		task      int
		toIndex   int
		wantFrom  []int
		wantTo    []int
		wantApply bool
	}{
		{name: "append to other column", task: 0, toIndex: -1, wantFrom: []int{1, 2}, wantTo: []int{0}, wantApply: true},
		{name: "index past end appends", task: 2, toIndex: 10, wantFrom: []int{0, 1}, wantTo: []int{2}, wantApply: true},
		{name: "same column to front", sameCol: true, task: 2, toIndex: 0, wantFrom: []int{2, 0, 1}, wantApply: true},
		{name: "same column to middle", sameCol: true, task: 0, toIndex: 1, wantFrom: []int{1, 0, 2}, wantApply: true},
		{name: "same column negative appends", sameCol: true, task: 0, toIndex: -5, wantFrom: []int{1, 2, 0}, wantApply: true},
		{name: "same column index equal to length appends", sameCol: true, task: 1, toIndex: 2, wantFrom: []int{0, 2, 1}, wantApply: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, colA, colB, ids := newStoreWithTasks(t, 3)
			to := colB
			if tt.sameCol {
				to = colA
			}
			if got := s.MoveTask(seedBoardID, colA, to, ids[tt.task], tt.toIndex); got != tt.wantApply {
				t.Fatalf("MoveTask applied = %v, want %v", got, tt.wantApply)
			}
			pick := func(idx []int) []domain.ID {
				out := make([]domain.ID, len(idx))
				for i, n := range idx {
					out[i] = ids[n]
				}
				return out
			}
			a, _ := s.FindColumn(seedBoardID, colA)
			if diff := cmp.Diff(pick(tt.wantFrom), taskIDs(a)); diff != "" {
				t.Fatalf("source mismatch (-want +got):\n%s", diff)
			}
			if !tt.sameCol {
				b, _ := s.FindColumn(seedBoardID, colB)
				if diff := cmp.Diff(pick(tt.wantTo), taskIDs(b)); diff != "" {
					t.Fatalf("destination mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestMoveTaskIntoPosition(t *testing.T) {
	s, colA, colB, ids := newStoreWithTasks(t, 2)
	other, _ := s.CreateTask(seedBoardID, colB, domain.TaskFields{Title: "b0"})
	if !s.MoveTask(seedBoardID, colA, colB, ids[1], 0) {
		t.Fatalf("move")
	}
	b, _ := s.FindColumn(seedBoardID, colB)
	if diff := cmp.Diff([]domain.ID{ids[1], other.ID}, taskIDs(b)); diff != "" {
		t.Fatalf("destination mismatch (-want +got):\n%s", diff)
	}
}

func TestMoveTaskMissingReferencesIsNoop(t *testing.T) {
	s, colA, colB, ids := newStoreWithTasks(t, 1)
	before := s.Snapshot()
	cases := []struct {
		board, from, to, task domain.ID
	}{
		{board: 42, from: colA, to: colB, task: ids[0]},
		{board: seedBoardID, from: 42, to: colB, task: ids[0]},
		{board: seedBoardID, from: colA, to: 42, task: ids[0]},
		{board: seedBoardID, from: colB, to: colA, task: ids[0]},
	}
	for _, c := range cases {
		if s.MoveTask(c.board, c.from, c.to, c.task, 0) {
			t.Fatalf("expected no-op for %+v", c)
		}
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestRenameOnlyTouchesTitle(t *testing.T) {
	s, colA, _, ids := newStoreWithTasks(t, 1)
	if !s.RenameColumn(seedBoardID, colA, "Doing") {
		t.Fatalf("rename column")
	}
	if !s.RenameBoard(seedBoardID, "Renamed") {
		t.Fatalf("rename board")
	}
	if s.RenameBoard(77, "x") || s.RenameColumn(seedBoardID, 77, "x") {
		t.Fatalf("rename of missing entity should fail")
	}
	c, _ := s.FindColumn(seedBoardID, colA)
	if c.Title != "Doing" || len(c.Tasks) != 1 || c.Tasks[0].ID != ids[0] {
		t.Fatalf("unexpected column after rename: %#v", c)
	}
	b, _ := s.FindBoard(seedBoardID)
	if b.Title != "Renamed" || len(b.Columns) != 2 {
		t.Fatalf("unexpected board after rename: %#v", b)
	}
}

func TestSetCurrentBoardRequiresExistingBoard(t *testing.T) {
	s := New()
	second := s.CreateBoard("second")
	if s.SetCurrentBoard(1234) {
		t.Fatalf("expected unknown board to be rejected")
	}
	if s.CurrentBoardID() != second.ID {
		t.Fatalf("current board changed on rejected switch")
	}
	if !s.SetCurrentBoard(seedBoardID) || s.CurrentBoardID() != seedBoardID {
		t.Fatalf("expected switch back to seed board")
	}
}

func TestBoardsAreDeepCopies(t *testing.T) {
	s, colA, _, _ := newStoreWithTasks(t, 1)
	boards := s.Boards()
	boards[0].Columns[0].Tasks[0].Title = "mutated"
	boards[0].Columns = nil

	c, _ := s.FindColumn(seedBoardID, colA)
	if c.Tasks[0].Title != "t" {
		t.Fatalf("store mutated through query result")
	}
}
