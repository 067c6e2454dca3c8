package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"kanban-app/board"
	"kanban-app/domain"
)

const (
	stateRowKey    = "state"
	boardRowPrefix = "board-"
	edmInt64       = "Edm.Int64"
	// Entity group transactions are capped at 100 operations.
	maxTransactionOps = 100
	// String properties hold at most 64 KiB of UTF-16, so board JSON is
	// split into chunks that stay below it for any input.
	maxChunkBytes = 32 * 1024
)

// TableSnapshots stores a snapshot in an Azure table partition: one row for
// the board pointer and ID counter, and per board a head row followed by
// continuation rows when its JSON does not fit in one property.
type TableSnapshots struct {
	table     *aztables.Client
	partition string
}

// NewTableSnapshots creates a table-backed store from a connection string.
func NewTableSnapshots(connStr, tableName, partition string) (*TableSnapshots, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableSnapshots{table: svc.NewClient(tableName), partition: partition}, nil
}

// tableKeys mirrors the key columns only; Timestamp is owned by the service.
type tableKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type stateEntity struct {
	tableKeys
	CurrentBoardID     int64  `json:"CurrentBoardId,string"`
	CurrentBoardIDType string `json:"CurrentBoardId@odata.type"`
	LastID             int64  `json:"LastId,string"`
	LastIDType         string `json:"LastId@odata.type"`
	BoardOrder         string `json:"BoardOrder"`
}

type boardEntity struct {
	tableKeys
	Data  string `json:"Data"`
	Parts int32  `json:"Parts,omitempty"`
}

func (t *TableSnapshots) Load(ctx context.Context) (board.Snapshot, error) {
	filter := "PartitionKey eq '" + strings.ReplaceAll(t.partition, "'", "''") + "'"
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var rows [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return board.Snapshot{}, err
		}
		rows = append(rows, resp.Entities...)
	}
	return decodeSnapshotEntities(rows)
}

func (t *TableSnapshots) Save(ctx context.Context, snap board.Snapshot) error {
	rows, err := encodeSnapshotEntities(t.partition, snap)
	if err != nil {
		return err
	}
	if err := t.submit(ctx, aztables.TransactionTypeInsertReplace, rows); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	existing, err := t.rowKeys(ctx)
	if err != nil {
		return fmt.Errorf("list snapshot rows: %w", err)
	}
	stale, err := staleRows(t.partition, existing, rows)
	if err != nil {
		return err
	}
	if err := t.submit(ctx, aztables.TransactionTypeDelete, stale); err != nil {
		return fmt.Errorf("delete stale rows: %w", err)
	}
	return nil
}

func (t *TableSnapshots) submit(ctx context.Context, kind aztables.TransactionType, rows [][]byte) error {
	for start := 0; start < len(rows); start += maxTransactionOps {
		end := min(start+maxTransactionOps, len(rows))
		actions := make([]aztables.TransactionAction, 0, end-start)
		for _, row := range rows[start:end] {
			actions = append(actions, aztables.TransactionAction{ActionType: kind, Entity: row})
		}
		if _, err := t.table.SubmitTransaction(ctx, actions, nil); err != nil {
			return fmt.Errorf("rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (t *TableSnapshots) rowKeys(ctx context.Context) ([]string, error) {
	filter := "PartitionKey eq '" + strings.ReplaceAll(t.partition, "'", "''") + "'"
	sel := "RowKey"
	pager := t.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var keys []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var k tableKeys
			if err := sonic.Unmarshal(raw, &k); err != nil {
				return nil, err
			}
			keys = append(keys, k.RowKey)
		}
	}
	return keys, nil
}

// staleRows returns delete entities for board rows in existing that the
// latest save did not write: removed boards and unused continuation rows.
func staleRows(partition string, existing []string, written [][]byte) ([][]byte, error) {
	keep := make(map[string]struct{}, len(written))
	for _, raw := range written {
		var k tableKeys
		if err := sonic.Unmarshal(raw, &k); err != nil {
			return nil, err
		}
		keep[k.RowKey] = struct{}{}
	}
	var out [][]byte
	for _, key := range existing {
		if _, ok := keep[key]; ok || !strings.HasPrefix(key, boardRowPrefix) {
			continue
		}
		row, err := sonic.Marshal(tableKeys{PartitionKey: partition, RowKey: key})
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (t *TableSnapshots) Ping(ctx context.Context) error {
	_, err := t.table.GetEntity(ctx, t.partition, stateRowKey, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return err
	}
	return nil
}

// encodeSnapshotEntities returns board rows first and the state row last,
// so a reader never sees a state row naming a board that was not written.
func encodeSnapshotEntities(partition string, snap board.Snapshot) ([][]byte, error) {
	rows := make([][]byte, 0, len(snap.Boards)+1)
	order := make([]string, 0, len(snap.Boards))
	for _, b := range snap.Boards {
		data, err := sonic.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode board %d: %w", b.ID, err)
		}
		chunks := splitChunks(data, maxChunkBytes)
		for n, chunk := range chunks {
			ent := boardEntity{
				tableKeys: tableKeys{PartitionKey: partition, RowKey: chunkRowKey(b.ID, n)},
				Data:      string(chunk),
			}
			if n == 0 {
				ent.Parts = int32(len(chunks))
			}
			row, err := sonic.Marshal(ent)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		order = append(order, b.ID.String())
	}
	state := stateEntity{
		tableKeys:          tableKeys{PartitionKey: partition, RowKey: stateRowKey},
		CurrentBoardID:     int64(snap.CurrentBoardID),
		CurrentBoardIDType: edmInt64,
		LastID:             int64(snap.LastID),
		LastIDType:         edmInt64,
		BoardOrder:         strings.Join(order, ","),
	}
	row, err := sonic.Marshal(state)
	if err != nil {
		return nil, err
	}
	return append(rows, row), nil
}

// splitChunks cuts data into pieces of at most size bytes without splitting
// a UTF-8 sequence.
func splitChunks(data []byte, size int) [][]byte {
	if len(data) <= size {
		return [][]byte{data}
	}
	var out [][]byte
	for len(data) > size {
		end := size
		for end > 0 && !utf8.RuneStart(data[end]) {
			end--
		}
		out = append(out, data[:end])
		data = data[end:]
	}
	return append(out, data)
}

func decodeSnapshotEntities(rows [][]byte) (board.Snapshot, error) {
	var (
		state    *stateEntity
		heads    = make(map[domain.ID]boardEntity, len(rows))
		parts    = make(map[string]string)
		rowOrder []domain.ID
	)
	for _, raw := range rows {
		var keys tableKeys
		if err := sonic.Unmarshal(raw, &keys); err != nil {
			return board.Snapshot{}, err
		}
		if keys.RowKey == stateRowKey {
			var s stateEntity
			if err := sonic.Unmarshal(raw, &s); err != nil {
				return board.Snapshot{}, fmt.Errorf("decode state row: %w", err)
			}
			state = &s
			continue
		}
		if !strings.HasPrefix(keys.RowKey, boardRowPrefix) {
			continue
		}
		var ent boardEntity
		if err := sonic.Unmarshal(raw, &ent); err != nil {
			return board.Snapshot{}, err
		}
		id, ok := domain.ParseID(strings.TrimPrefix(keys.RowKey, boardRowPrefix))
		if !ok {
			parts[keys.RowKey] = ent.Data
			continue
		}
		heads[id] = ent
		rowOrder = append(rowOrder, id)
	}
	if state == nil {
		return board.Snapshot{}, ErrSnapshotNotFound
	}

	order := parseBoardOrder(state.BoardOrder)
	if len(order) == 0 {
		sort.Slice(rowOrder, func(i, j int) bool { return rowOrder[i] < rowOrder[j] })
		order = rowOrder
	}
	snap := board.Snapshot{
		Boards:         make([]domain.Board, 0, len(order)),
		CurrentBoardID: domain.ID(state.CurrentBoardID),
		LastID:         domain.ID(state.LastID),
	}
	for _, id := range order {
		head, ok := heads[id]
		if !ok {
			continue
		}
		var data strings.Builder
		data.WriteString(head.Data)
		for n := 1; n < int(head.Parts); n++ {
			chunk, ok := parts[chunkRowKey(id, n)]
			if !ok {
				return board.Snapshot{}, fmt.Errorf("decode %s: missing part %d of %d", head.RowKey, n, head.Parts)
			}
			data.WriteString(chunk)
		}
		var b domain.Board
		if err := sonic.UnmarshalString(data.String(), &b); err != nil {
			return board.Snapshot{}, fmt.Errorf("decode %s: %w", head.RowKey, err)
		}
		snap.Boards = append(snap.Boards, b)
	}
	return snap, nil
}

func parseBoardOrder(s string) []domain.ID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.ID, 0, len(parts))
	for _, p := range parts {
		if id, ok := domain.ParseID(strings.TrimSpace(p)); ok {
			out = append(out, id)
		}
	}
	return out
}

func boardRowKey(id domain.ID) string {
	return boardRowPrefix + strconv.FormatInt(int64(id), 10)
}

// chunkRowKey names part n of a board; part 0 is the head row.
func chunkRowKey(id domain.ID, n int) string {
	if n == 0 {
		return boardRowKey(id)
	}
	return boardRowKey(id) + "-" + strconv.Itoa(n)
}
