package api

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-app/board"
	"kanban-app/domain"
)

// PersisterConfig tunes the background persister.
type PersisterConfig struct {
	// Buffer is the number of batches that may wait for the worker.
	Buffer int
	// Debounce is how long the worker keeps collecting batches before it
	// writes one snapshot for all of them.
	Debounce time.Duration
	// Timeout bounds a single flush.
	Timeout time.Duration
	// HandoffTimeout is how long Schedule waits for buffer space before
	// flushing inline.
	HandoffTimeout time.Duration
}

// Persister coalesces applied batches into snapshot saves, journal appends
// and change notifications, off the request path.
type Persister struct {
	source    func() board.Snapshot
	snapshots SnapshotSaver
	journal   Journal
	notifier  Notifier
	log       *log.Logger
	cfg       PersisterConfig

	jobs      chan Batch
	wg        sync.WaitGroup
	closeOnce sync.Once
	flushMu   sync.Mutex
}

// NewPersister starts the worker. source returns the state to save; journal
// and notifier are optional.
func NewPersister(source func() board.Snapshot, snapshots SnapshotSaver, journal Journal, notifier Notifier, cfg PersisterConfig, logger *log.Logger) *Persister {
	p := newPersister(source, snapshots, journal, notifier, cfg, logger)
	p.wg.Add(1)
	go p.run()
	logger.Infof("persister started, buffer: %d, debounce: %v, timeout: %v, handoff: %v", cap(p.jobs), p.cfg.Debounce, p.cfg.Timeout, p.cfg.HandoffTimeout)
	return p
}

func newPersister(source func() board.Snapshot, snapshots SnapshotSaver, journal Journal, notifier Notifier, cfg PersisterConfig, logger *log.Logger) *Persister {
	if source == nil || snapshots == nil {
		panic("api.NewPersister: source and snapshots are required")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Persister{
		source:    source,
		snapshots: snapshots,
		journal:   journal,
		notifier:  notifier,
		log:       logger,
		cfg:       cfg,
		jobs:      make(chan Batch, cfg.Buffer),
	}
}

// Schedule hands a batch to the worker. When the buffer stays full past the
// handoff timeout, or the persister is closed, the batch is flushed inline.
func (p *Persister) Schedule(batch Batch) {
	if p.tryEnqueue(batch) {
		return
	}
	p.log.Warn("persist buffer saturated; flushing inline")
	p.flush(append(p.drain(), batch))
}

// drain takes the batches already waiting in the buffer without blocking, so
// an inline flush does not journal a batch ahead of older queued ones.
func (p *Persister) drain() []Batch {
	var out []Batch
	for {
		select {
		case b, ok := <-p.jobs:
			if !ok {
				return out
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

// Close stops the worker after it drained the buffer and writes a final
// snapshot.
func (p *Persister) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.jobs) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := p.flush(nil); err != nil {
		return err
	}
	p.log.Info("persister stopped")
	return nil
}

func (p *Persister) run() {
	defer p.wg.Done()
	for batch := range p.jobs {
		pending, open := p.collect([]Batch{batch})
		_ = p.flush(pending)
		if !open {
			return
		}
	}
}

// collect gathers batches arriving within the debounce window. It reports
// false once the job channel is closed.
func (p *Persister) collect(pending []Batch) ([]Batch, bool) {
	if p.cfg.Debounce <= 0 {
		return pending, true
	}
	timer := time.NewTimer(p.cfg.Debounce)
	defer timer.Stop()
	for {
		select {
		case b, ok := <-p.jobs:
			if !ok {
				return pending, false
			}
			pending = append(pending, b)
		case <-timer.C:
			return pending, true
		}
	}
}

// flush writes the journal entry for batches, then the current snapshot,
// then announces the change. Flushes never overlap, so the last snapshot
// saved is never older than one saved before it.
func (p *Persister) flush(batches []Batch) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	// Handoffs can race between applying a batch and scheduling it.
	slices.SortStableFunc(batches, func(a, b Batch) int { return cmp.Compare(a.Seq, b.Seq) })
	var (
		cmds []domain.Command
		seq  uint64
	)
	for _, b := range batches {
		cmds = append(cmds, b.Commands...)
		seq = max(seq, b.Seq)
	}

	var errs []error
	if p.journal != nil && len(cmds) > 0 {
		entry := domain.JournalEntry{Seq: seq, Commands: cmds, Timestamp: commandClock.Next()}
		if err := p.journal.Append(ctx, entry); err != nil {
			p.log.Errorf("journal append failed, err: %v, count: %d", err, len(cmds))
			errs = append(errs, err)
		}
	}

	snap := p.source()
	if err := p.snapshots.Save(ctx, snap); err != nil {
		p.log.Errorf("snapshot save failed, err: %v, boards: %d", err, len(snap.Boards))
		errs = append(errs, err)
	} else {
		p.log.WithFields(log.Fields{"boards": len(snap.Boards), "commands": len(cmds)}).Debug("snapshot saved")
	}

	if p.notifier != nil && len(cmds) > 0 {
		names := make([]string, len(cmds))
		for i := range cmds {
			names[i] = cmds[i].Type
		}
		ev := domain.BoardEvent{
			Type:           domain.BoardUpdated,
			CurrentBoardID: snap.CurrentBoardID,
			Commands:       names,
			Time:           time.Now().UnixMilli(),
		}
		if err := p.notifier.Publish(ctx, ev); err != nil {
			p.log.Errorf("publish board event failed, err: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Persister) tryEnqueue(batch Batch) bool {
	if ok, closed := trySendNonBlocking(p.jobs, batch); closed {
		return false
	} else if ok {
		return true
	}

	if p.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(p.jobs, batch, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan Batch, batch Batch) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- batch:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan Batch, batch Batch, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- batch:
		return true, false
	case <-timer:
		return false, false
	}
}
