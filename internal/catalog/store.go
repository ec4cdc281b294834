// Package catalog is the local gallery catalog. All writes go through one
// writer goroutine that drains a FIFO queue and commits each drained batch
// in a single transaction; all reads go through one reader goroutine.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vmunix/galleria/internal/migrations"
)

const queueSize = 256

// Options configures a Store.
type Options struct {
	// CompareLike makes filter values match with LIKE instead of =.
	CompareLike bool
}

type stmt struct {
	query string
	args  []any
}

type writeJob struct {
	stmts []stmt
	done  chan error // may be nil
}

type readJob struct {
	query string
	args  []any
	fn    func([]Row, error)
}

// Store is the catalog handle. It is safe for concurrent use.
type Store struct {
	wdb    *sql.DB
	rdb    *sql.DB
	opts   Options
	log    *slog.Logger
	schema int64

	writes chan writeJob
	reads  chan readJob
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the catalog at path, applies migrations
// and starts the reader and writer. ":memory:" opens a private in-memory
// catalog served by a single connection.
func Open(path string, opts Options, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	wdb, err := openDB(path, !memory)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(wdb); err != nil {
		_ = wdb.Close()
		return nil, err
	}
	version, err := migrations.Version(wdb)
	if err != nil {
		_ = wdb.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	rdb := wdb
	if !memory {
		if rdb, err = openDB(path, true); err != nil {
			_ = wdb.Close()
			return nil, err
		}
	}

	s := &Store{
		wdb:    wdb,
		rdb:    rdb,
		opts:   opts,
		log:    log,
		schema: version,
		writes: make(chan writeJob, queueSize),
		reads:  make(chan readJob, queueSize),
	}
	s.group.Go(s.writeLoop)
	s.group.Go(s.readLoop)
	log.Debug("catalog opened", "path", path, "schema_version", version)
	return s, nil
}

// SchemaVersion is the migration version the catalog was brought up to.
func (s *Store) SchemaVersion() int64 { return s.schema }

func openDB(path string, wal bool) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if wal {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// enqueueWrite submits a job to the writer.
func (s *Store) enqueueWrite(job writeJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.writes <- job
	return nil
}

func (s *Store) enqueueRead(job readJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.reads <- job
	return nil
}

// submit queues stmts as one job and waits for its commit.
func (s *Store) submit(ctx context.Context, stmts []stmt) error {
	done := make(chan error, 1)
	if err := s.enqueueWrite(writeJob{stmts: stmts, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every write queued before the call is committed.
func (s *Store) Flush(ctx context.Context) error {
	return s.submit(ctx, nil)
}

func (s *Store) writeLoop() error {
	for job := range s.writes {
		batch := []writeJob{job}
	drain:
		for {
			select {
			case next, ok := <-s.writes:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		s.commitBatch(batch)
	}
	return nil
}

// commitBatch runs the batch in one transaction. If that fails each job
// is retried in its own transaction so one bad job cannot sink the rest.
func (s *Store) commitBatch(batch []writeJob) {
	var all []stmt
	for _, j := range batch {
		all = append(all, j.stmts...)
	}
	err := s.exec(all)
	if err != nil && len(batch) > 1 {
		s.log.Warn("batch write failed, retrying jobs individually", "jobs", len(batch), "error", err)
		for _, j := range batch {
			finish(j, s.exec(j.stmts))
		}
		return
	}
	if err != nil {
		s.log.Warn("write failed", "error", err)
	}
	for _, j := range batch {
		finish(j, err)
	}
}

func finish(j writeJob, err error) {
	if j.done != nil {
		j.done <- err
	}
}

func (s *Store) exec(stmts []stmt) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := s.wdb.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec: %w", mapSQLiteError(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) readLoop() error {
	for job := range s.reads {
		rows, err := s.query(job.query, job.args)
		job.fn(rows, err)
	}
	return nil
}

// Close drains both queues, stops the workers and closes the database.
// It must complete before the process exits.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	close(s.reads)
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return fmt.Errorf("catalog close: %w", ctx.Err())
	}

	var err error
	if s.rdb != s.wdb {
		err = s.rdb.Close()
	}
	if werr := s.wdb.Close(); werr != nil {
		err = werr
	}
	s.log.Debug("catalog closed")
	return err
}
