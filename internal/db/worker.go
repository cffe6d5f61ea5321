package db

import (
	"context"
	"database/sql"
	"fmt"
)

type TxFn func(ctx context.Context, tx *sql.Tx) error

// Runner executes fn inside a transaction: commit on nil, rollback on error.
type Runner interface {
	Do(ctx context.Context, fn TxFn) error
}

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker is the single writer for SQLite: jobs run one transaction at a
// time on a dedicated goroutine.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	// Enqueue; bail out if the caller's context expires while the buffer is full.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The loop still finishes a job whose caller gave up; the result lands
	// in the buffered ch and is discarded.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		j.ch <- runTx(j.ctx, w.db, j.fn)
	}
}

// TxRunner runs each fn in its own transaction on the pool. Used for
// Postgres, where the server handles write concurrency.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) Do(ctx context.Context, fn TxFn) error {
	return runTx(ctx, r.db, fn)
}

// NewRunner picks the runner for the dialect. The returned close func
// stops the SQLite worker and is a no-op otherwise.
func NewRunner(db *sql.DB, d Dialect) (Runner, func()) {
	if d == Postgres {
		return NewTxRunner(db), func() {}
	}
	w := NewWorker(db)
	return w, w.Close
}

// runTx turns a panic in fn into a rolled-back transaction and an error,
// so one bad job cannot take down the writer goroutine.
func runTx(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("transaction panic: %v", r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
