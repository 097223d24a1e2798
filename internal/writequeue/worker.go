package writequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rzbill/feedgen/internal/feedstore"
	logpkg "github.com/rzbill/feedgen/pkg/log"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("writequeue: closed")

// Kind identifies a queued command.
type Kind uint8

const (
	CmdWrite Kind = iota + 1
	CmdFlush
	CmdShutdown
)

func (k Kind) String() string {
	switch k {
	case CmdWrite:
		return "write"
	case CmdFlush:
		return "flush"
	case CmdShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// PrepareFunc runs inside the open transaction right before a flush commits.
type PrepareFunc func(tx *feedstore.Tx) error

// Command is one unit of work for the worker goroutine.
type Command struct {
	Kind     Kind
	Mutation feedstore.Mutation
	Prepare  PrepareFunc
	done     chan error
}

// Stats is a point-in-time view of worker activity.
type Stats struct {
	Queued  int
	Applied uint64
	Commits uint64
}

// Worker applies mutations to a feed store from a single goroutine. Writes
// accumulate in one open transaction until a flush commits them.
type Worker struct {
	store  *feedstore.Store
	logger logpkg.Logger

	mu       sync.Mutex
	queue    []Command
	closing  bool
	fatalErr error
	notify   chan struct{}
	exited   chan struct{}

	applied atomic.Uint64
	commits atomic.Uint64
}

// Start launches the worker goroutine for store.
func Start(store *feedstore.Store, logger logpkg.Logger) *Worker {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	w := &Worker{
		store:  store,
		logger: logger.With(logpkg.Component("writequeue"), logpkg.Feed(store.Name())),
		notify: make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	go w.run()
	return w
}

// Write enqueues a mutation. It never blocks on storage.
func (w *Worker) Write(m feedstore.Mutation) error {
	return w.enqueue(Command{Kind: CmdWrite, Mutation: m})
}

// Flush enqueues a commit and waits until every write queued before it is
// durable. prepare may be nil.
func (w *Worker) Flush(ctx context.Context, prepare PrepareFunc) error {
	done := make(chan error, 1)
	if err := w.enqueue(Command{Kind: CmdFlush, Prepare: prepare, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, commits pending writes and stops the worker.
func (w *Worker) Close(ctx context.Context) error {
	done := make(chan error, 1)
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		select {
		case <-w.exited:
			return w.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.closing = true
	w.queue = append(w.queue, Command{Kind: CmdShutdown, done: done})
	w.mu.Unlock()
	w.signal()

	select {
	case err := <-done:
		<-w.exited
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the sticky failure, if any.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fatalErr
}

// Stats reports queue depth and counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	n := len(w.queue)
	w.mu.Unlock()
	return Stats{Queued: n, Applied: w.applied.Load(), Commits: w.commits.Load()}
}

func (w *Worker) enqueue(c Command) error {
	w.mu.Lock()
	if w.fatalErr != nil {
		err := w.fatalErr
		w.mu.Unlock()
		return err
	}
	if w.closing {
		w.mu.Unlock()
		return ErrClosed
	}
	w.queue = append(w.queue, c)
	w.mu.Unlock()
	w.signal()
	return nil
}

func (w *Worker) signal() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *Worker) fail(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fatalErr == nil {
		w.fatalErr = err
		w.logger.Error("write queue failed", logpkg.Err(err))
	}
	return w.fatalErr
}

func (w *Worker) run() {
	defer close(w.exited)
	tx := w.store.Begin()
	defer tx.Discard()

	for range w.notify {
		w.mu.Lock()
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, c := range batch {
			switch c.Kind {
			case CmdWrite:
				if w.Err() != nil {
					continue
				}
				if err := tx.Apply(c.Mutation); err != nil {
					w.fail(fmt.Errorf("apply %s %s: %w", c.Mutation.Kind, c.Mutation.URI, err))
					continue
				}
				w.applied.Add(1)
			case CmdFlush:
				c.done <- w.commit(tx, c.Prepare)
			case CmdShutdown:
				err := w.commit(tx, nil)
				w.logger.Debug("write queue stopped", logpkg.Int64("applied", int64(w.applied.Load())))
				c.done <- err
				return
			}
		}
	}
}

func (w *Worker) commit(tx *feedstore.Tx, prepare PrepareFunc) error {
	if err := w.Err(); err != nil {
		return err
	}
	if prepare != nil {
		if err := prepare(tx); err != nil {
			return w.fail(fmt.Errorf("prepare: %w", err))
		}
	}
	if err := tx.Commit(context.Background()); err != nil {
		return w.fail(err)
	}
	w.commits.Add(1)
	return nil
}
