package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-app/board"
	"kanban-app/domain"
)

// Deps are the collaborators of the HTTP handlers. Health, Deduper and
// Persister are optional.
type Deps struct {
	Engine    Engine
	Health    HealthChecker
	Deduper   Deduper
	Persister Scheduler
	// Scope namespaces idempotency keys, usually the snapshot name.
	Scope string
	Log   *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps) {
	if deps.Engine == nil {
		panic("api.Register: engine is nil")
	}
	if deps.Log == nil {
		panic("Logger is not initialized")
	}
	broker := newUpdateBroker()

	e.GET("/healthz", healthz(deps.Health))
	e.GET("/api/boards", getBoards(deps.Engine))
	e.GET("/api/boards/current", getCurrentBoard(deps.Engine))
	e.GET("/api/boards/:boardId/columns/:columnId", getColumn(deps.Engine))
	e.GET("/api/session", getSession(deps.Engine))
	e.GET("/api/snapshot", getSnapshot(deps.Engine))
	e.POST("/api/commands", postCommands(deps, broker), GzipRequestMiddleware())
	e.GET("/api/stream", streamBoard(deps.Engine, broker))
}

func healthz(health HealthChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		if health == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			c.Logger().Errorf("health check failed: %v", err)
			return c.String(http.StatusServiceUnavailable, "snapshot store unavailable")
		}
		return c.NoContent(http.StatusOK)
	}
}

func getBoards(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap := engine.Snapshot()
		return c.JSON(http.StatusOK, boardsResponse{Boards: snap.Boards, CurrentBoardID: snap.CurrentBoardID})
	}
}

func getCurrentBoard(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, ok := engine.CurrentBoard()
		if !ok {
			return c.String(http.StatusNotFound, "no current board")
		}
		return c.JSON(http.StatusOK, b)
	}
}

func getColumn(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		boardID, ok := domain.ParseID(c.Param("boardId"))
		if !ok {
			return c.String(http.StatusBadRequest, "invalid board id")
		}
		columnID, ok := domain.ParseID(c.Param("columnId"))
		if !ok {
			return c.String(http.StatusBadRequest, "invalid column id")
		}
		col, found := engine.ColumnByID(boardID, columnID)
		if !found {
			return c.String(http.StatusNotFound, "column not found")
		}
		return c.JSON(http.StatusOK, col)
	}
}

func getSession(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, engine.Session())
	}
}

func getSnapshot(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, engine.Snapshot())
	}
}

// finalizeCommands assigns missing idempotency keys and returns the keys in
// order.
func finalizeCommands(cmds []domain.Command) []string {
	keys := make([]string, len(cmds))
	for i := range cmds {
		if cmds[i].IdempotencyKey == "" {
			cmds[i].IdempotencyKey = uuid.NewString()
		}
		keys[i] = cmds[i].IdempotencyKey
	}
	return keys
}

// stampCommands gives cmds consecutive timestamps. It runs under the engine
// lock so timestamps follow apply order across requests.
func stampCommands(cmds []domain.Command) {
	ts := commandClock.Reserve(len(cmds))
	for i := range cmds {
		cmds[i].Timestamp = ts + int64(i)
	}
}

func postCommands(deps Deps, broker *updateBroker) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newCommandRequestMetrics(ctx, deps.Log)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		wire := make([]domain.Command, 0, 4)
		if decErr := dec.Decode(&wire); decErr != nil {
			metrics.SetErrorStage("decode")
			return c.JSON(http.StatusBadRequest, postCommandResponse{Error: "invalid body"})
		}
		metrics.SetReceived(len(wire))
		cmds, decErr := decodeCommands(wire)
		metrics.ObserveDecode(time.Since(decodeStart))
		if decErr != nil {
			metrics.SetErrorStage("decode_command")
			return c.JSON(http.StatusBadRequest, postCommandResponse{Error: decErr.Error()})
		}

		keys := finalizeCommands(wire)
		dedupeStart := time.Now()
		fresh, dedupeErr := dedupe(ctx, deps, keys)
		metrics.ObserveDedupe(time.Since(dedupeStart))
		if dedupeErr != nil {
			metrics.SetErrorStage("dedupe")
			deps.Log.Errorf("dedupe failed, err: %v, count: %d", dedupeErr, len(keys))
			return c.JSON(http.StatusServiceUnavailable, postCommandResponse{Error: "failed to record idempotency keys"})
		}

		outcomes := make([]domain.CommandOutcome, len(wire))
		toApply := make([]board.Command, 0, len(cmds))
		index := make([]int, 0, len(cmds))
		for i := range wire {
			outcomes[i] = domain.CommandOutcome{IdempotencyKey: wire[i].IdempotencyKey, Type: wire[i].Type}
			if !fresh[i] {
				outcomes[i].Reason = reasonDuplicate
				continue
			}
			toApply = append(toApply, cmds[i])
			index = append(index, i)
		}

		var (
			appliedCount int
			ignored      int
			persist      Batch
		)
		applyStart := time.Now()
		results := deps.Engine.ApplySequenced(toApply, func(seq uint64) {
			persist.Seq = seq
			stampCommands(wire)
		})
		metrics.ObserveApply(time.Since(applyStart))

		for j, res := range results {
			i := index[j]
			outcomes[i].Applied = res.Applied
			outcomes[i].Reason = string(res.Reason)
			outcomes[i].ID = res.CreatedID()
			if !res.Applied {
				ignored++
				continue
			}
			appliedCount++
			if board.Mutates(toApply[j]) {
				persist.Commands = append(persist.Commands, wire[i])
			}
		}
		metrics.SetOutcomes(appliedCount, ignored, len(wire)-len(toApply))

		if appliedCount > 0 {
			broker.notify()
		}
		if len(persist.Commands) > 0 && deps.Persister != nil {
			deps.Persister.Schedule(persist)
		}

		return c.JSON(http.StatusOK, postCommandResponse{Outcomes: outcomes})
	}
}

// dedupe reports which keys are new. Without a deduper every key is new.
// On failure the keys recorded so far are rolled back.
func dedupe(ctx context.Context, deps Deps, keys []string) ([]bool, error) {
	if deps.Deduper == nil {
		fresh := make([]bool, len(keys))
		for i := range fresh {
			fresh[i] = true
		}
		return fresh, nil
	}
	fresh, err := deps.Deduper.AddMany(ctx, deps.Scope, keys)
	if err == nil && len(fresh) != len(keys) {
		err = errors.New("deduper returned a short result")
	}
	if err != nil {
		for i, added := range fresh {
			if !added || i >= len(keys) {
				continue
			}
			if rerr := deps.Deduper.Remove(context.Background(), deps.Scope, keys[i]); rerr != nil {
				deps.Log.Errorf("dedupe rollback failed, err: %v, key: %s", rerr, keys[i])
			}
		}
		return nil, err
	}
	return fresh, nil
}
