package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"kanban-app/api"
	"kanban-app/board"
	"kanban-app/config"
	"kanban-app/storage"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

// server is the wired application: the HTTP routes and the persister that
// must be closed after the routes stop accepting commands.
type server struct {
	echo      *echo.Echo
	persister *api.Persister
	logger    *log.Logger
}

func newServer(ctx context.Context, c config.Config, rc *redis.Client, logger *log.Logger) (*server, error) {
	snapshots, err := openSnapshots(c, rc)
	if err != nil {
		return nil, err
	}
	store, err := restoreStore(ctx, snapshots, logger)
	if err != nil {
		return nil, err
	}
	proc := board.NewProcessor(store)

	var journal api.Journal
	if c.Storage.JournalQueue != "" {
		j, err := storage.NewQueueJournal(c.Storage.ConnectionString, c.Storage.JournalQueue)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		journal = j
	}
	var notifier api.Notifier
	var deduper api.Deduper = api.NewMemoryDeduper(c.Redis.DedupeTTL)
	if rc != nil {
		notifier = storage.NewRedisNotifier(rc, c.Redis.Channel)
		deduper = api.NewRedisDeduper(rc, c.Redis.DedupeTTL)
	}

	persister := api.NewPersister(proc.Snapshot, snapshots, journal, notifier, api.PersisterConfig{
		Buffer:         c.Persist.Buffer,
		Debounce:       c.Persist.Debounce,
		Timeout:        c.Persist.Timeout,
		HandoffTimeout: c.Persist.HandoffTimeout,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))
	api.Register(e, api.Deps{
		Engine:    proc,
		Health:    snapshots,
		Deduper:   deduper,
		Persister: persister,
		Scope:     c.Snapshot.Name,
		Log:       logger,
	})
	return &server{echo: e, persister: persister, logger: logger}, nil
}

// shutdown stops the routes first so that the final flush sees every
// accepted batch.
func (s *server) shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Errorf("http shutdown failed, err: %v", err)
	}
	if err := s.persister.Close(ctx); err != nil {
		s.logger.Errorf("final flush failed, err: %v", err)
		return err
	}
	return nil
}

func serve(ctx context.Context, c config.Config) error {
	logger := log.New()
	logger.SetLevel(log.GetLevel())
	if c.LogFormat == config.LogFormatJSON {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	var rc *redis.Client
	if c.Redis.URL != "" {
		opts, err := storage.ParseRedisOptions(c.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	srv, err := newServer(ctx, c, rc, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s, backend: %s, snapshot: %s", c.Listen, c.Backend, c.Snapshot.Name)
		if err := srv.echo.Start(c.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	serveErr = errors.Join(serveErr, srv.shutdown(shutdownCtx))
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("tracer shutdown failed, err: %v", err)
	}
	return serveErr
}

func openSnapshots(c config.Config, rc *redis.Client) (storage.SnapshotStore, error) {
	switch c.Backend {
	case config.BackendMemory:
		return storage.NewMemorySnapshots(), nil
	case config.BackendRedis:
		if rc == nil {
			return nil, errors.New("redis backend requires a redis client")
		}
		return storage.NewRedisSnapshots(rc, c.Snapshot.Name), nil
	case config.BackendTable:
		ts, err := storage.NewTableSnapshots(c.Storage.ConnectionString, c.Storage.Table, c.Storage.Partition)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if rc != nil && c.Redis.CacheTTL > 0 {
			return storage.NewCache(ts, rc, c.Snapshot.Name, c.Redis.CacheTTL), nil
		}
		return ts, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// restoreStore loads the last snapshot, or seeds a fresh workspace when none
// has been saved yet.
func restoreStore(ctx context.Context, snapshots storage.SnapshotStore, logger *log.Logger) (*board.Store, error) {
	snap, err := snapshots.Load(ctx)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		logger.Info("no snapshot found, starting with the main board")
		return board.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	logger.Infof("snapshot restored, boards: %d, current: %d", len(snap.Boards), snap.CurrentBoardID)
	return board.Restore(snap), nil
}
