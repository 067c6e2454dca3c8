package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"

	"kanban-app/domain"
)

func TestSnapshotEntitiesRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	snap.Boards = append(snap.Boards, domain.Board{ID: 9, Title: "Later", Columns: []domain.Column{}})
	snap.LastID = 9

	rows, err := encodeSnapshotEntities("main", snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 2 board rows and a state row, got %d", len(rows))
	}
	if !strings.Contains(string(rows[2]), `"RowKey":"state"`) {
		t.Fatalf("expected state row last, got %s", rows[2])
	}
	if !strings.Contains(string(rows[2]), `"LastId@odata.type":"Edm.Int64"`) {
		t.Fatalf("expected edm type annotation, got %s", rows[2])
	}

	got, err := decodeSnapshotEntities(rows)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotEntitiesSplitLargeBoard(t *testing.T) {
	snap := sampleSnapshot()
	// Multi-byte runes so chunk boundaries land inside UTF-8 sequences.
	snap.Boards[0].Columns[0].Tasks[0].Description = strings.Repeat("päckchen ", 20_000)

	rows, err := encodeSnapshotEntities("main", snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(rows) < 4 {
		t.Fatalf("expected the board to span several rows, got %d rows", len(rows))
	}
	for _, raw := range rows {
		var ent boardEntity
		if err := sonic.Unmarshal(raw, &ent); err != nil {
			t.Fatalf("decode row: %v", err)
		}
		if len(ent.Data) > maxChunkBytes {
			t.Fatalf("row %s holds %d bytes", ent.RowKey, len(ent.Data))
		}
		if !utf8.ValidString(ent.Data) {
			t.Fatalf("row %s split a UTF-8 sequence", ent.RowKey)
		}
	}
	if !strings.Contains(string(rows[0]), `"RowKey":"board-1"`) || !strings.Contains(string(rows[1]), `"RowKey":"board-1-1"`) {
		t.Fatalf("unexpected row keys: %s / %s", rows[0][:60], rows[1][:60])
	}

	got, err := decodeSnapshotEntities(rows)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// A lost continuation row is an error, not a truncated board.
	if _, err := decodeSnapshotEntities(append([][]byte{rows[0]}, rows[2:]...)); err == nil || !strings.Contains(err.Error(), "missing part 1") {
		t.Fatalf("expected missing part error, got %v", err)
	}
}

func TestSplitChunks(t *testing.T) {
	if got := splitChunks([]byte("short"), 8); len(got) != 1 || string(got[0]) != "short" {
		t.Fatalf("unexpected chunks: %q", got)
	}
	got := splitChunks([]byte("aé€b"), 3)
	if len(got) != 3 || string(got[0]) != "aé" || string(got[1]) != "€" || string(got[2]) != "b" {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestStaleRows(t *testing.T) {
	written := [][]byte{
		[]byte(`{"PartitionKey":"p","RowKey":"board-1"}`),
		[]byte(`{"PartitionKey":"p","RowKey":"board-1-1"}`),
		[]byte(`{"PartitionKey":"p","RowKey":"state"}`),
	}
	existing := []string{"board-1", "board-1-1", "board-1-2", "board-4", "state", "unrelated"}

	rows, err := staleRows("p", existing, written)
	if err != nil {
		t.Fatalf("stale rows: %v", err)
	}
	var keys []string
	for _, raw := range rows {
		var k tableKeys
		if err := sonic.Unmarshal(raw, &k); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if k.PartitionKey != "p" {
			t.Fatalf("unexpected partition %q", k.PartitionKey)
		}
		keys = append(keys, k.RowKey)
	}
	if diff := cmp.Diff([]string{"board-1-2", "board-4"}, keys); diff != "" {
		t.Fatalf("unexpected stale rows (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotEntitiesHonoursBoardOrder(t *testing.T) {
	rows := [][]byte{
		[]byte(`{"PartitionKey":"p","RowKey":"board-2","Data":"{\"id\":2,\"title\":\"two\",\"columns\":[]}"}`),
		[]byte(`{"PartitionKey":"p","RowKey":"board-10","Data":"{\"id\":10,\"title\":\"ten\",\"columns\":[]}"}`),
		[]byte(`{"PartitionKey":"p","RowKey":"unrelated","Data":"x"}`),
		[]byte(`{"PartitionKey":"p","RowKey":"state","CurrentBoardId":"2","LastId":"10","BoardOrder":"10,2"}`),
	}
	snap, err := decodeSnapshotEntities(rows)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Boards) != 2 || snap.Boards[0].ID != 10 || snap.Boards[1].ID != 2 {
		t.Fatalf("unexpected board order: %#v", snap.Boards)
	}
	if snap.CurrentBoardID != 2 || snap.LastID != 10 {
		t.Fatalf("unexpected state: %+v", snap)
	}
}

func TestDecodeSnapshotEntitiesWithoutStateRow(t *testing.T) {
	rows := [][]byte{
		[]byte(`{"PartitionKey":"p","RowKey":"board-2","Data":"{\"id\":2,\"title\":\"two\",\"columns\":[]}"}`),
	}
	if _, err := decodeSnapshotEntities(rows); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if _, err := decodeSnapshotEntities(nil); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound for empty partition, got %v", err)
	}
}

func TestMemorySnapshots(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySnapshots()
	if _, err := m.Load(ctx); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected not found before first save, got %v", err)
	}
	snap := sampleSnapshot()
	if err := m.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap.Boards[0].Title = "mutated after save"

	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Boards[0].Title != "Main Board" {
		t.Fatalf("memory store shares state with caller: %q", got.Boards[0].Title)
	}
	if m.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", m.Saves())
	}
}
