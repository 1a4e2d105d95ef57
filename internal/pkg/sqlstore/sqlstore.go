// Package sqlstore hides the SQL engine behind a single execution contract.
// Statements are written once with '?' placeholders and rebound for the
// engine that runs them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	queryTimeout = 3 * time.Second
	txTimeout    = 10 * time.Second
)

// Engine names a physical storage engine.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
)

// Querier runs statements either directly or inside a transaction.
type Querier interface {
	// Exec runs a statement and reports the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Get scans a single row into dest. A missing row yields ErrNoRows.
	Get(ctx context.Context, dest any, query string, args ...any) error
	// Select scans every row into the slice pointed to by dest.
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// TxFunc is the body of a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, q Querier) error

// TxOptions tunes a transaction. The zero value is the engine default
// isolation, read-write, with the default timeout.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
	Timeout   time.Duration
}

// SnapshotTxOptions is for multi-statement reads that must all observe the
// same committed state.
func SnapshotTxOptions() TxOptions {
	return TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// Backend is the storage contract shared by every engine.
type Backend interface {
	Querier
	// WithTx runs fn inside one transaction. Every statement fn issues
	// through q commits together or not at all.
	WithTx(ctx context.Context, fn TxFunc) error
	// WithTxOptions is WithTx with an explicit isolation level, access mode
	// and timeout.
	WithTxOptions(ctx context.Context, opts TxOptions, fn TxFunc) error
	Engine() Engine
	Ping(ctx context.Context) error
	Close() error
}

type store struct {
	db       *sqlx.DB
	engine   Engine
	isUnique func(error) bool
	// txOptions maps TxOptions onto what the driver accepts.
	txOptions func(TxOptions) *sql.TxOptions
}

func newStore(db *sqlx.DB, engine Engine, isUnique func(error) bool, txOptions func(TxOptions) *sql.TxOptions) *store {
	return &store{db: db, engine: engine, isUnique: isUnique, txOptions: txOptions}
}

func (s *store) Engine() Engine { return s.engine }

func (s *store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.classify("ping", err)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return runner{ext: s.db, s: s}.Exec(ctx2, query, args...)
}

func (s *store) Get(ctx context.Context, dest any, query string, args ...any) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return runner{ext: s.db, s: s}.Get(ctx2, dest, query, args...)
}

func (s *store) Select(ctx context.Context, dest any, query string, args ...any) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return runner{ext: s.db, s: s}.Select(ctx2, dest, query, args...)
}

func (s *store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.WithTxOptions(ctx, TxOptions{}, fn)
}

func (s *store) WithTxOptions(ctx context.Context, opts TxOptions, fn TxFunc) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = txTimeout
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx2, s.txOptions(opts))
	if err != nil {
		return s.classify("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(ctx2, runner{ext: tx, s: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.classify("commit tx", err)
	}
	return nil
}

// classify turns a driver error into ErrNoRows, ErrConflict or a *StorageError.
func (s *store) classify(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNoRows
	case s.isUnique(err):
		return &conflictError{engine: s.engine, err: err}
	default:
		return &StorageError{Engine: s.engine, Op: op, Err: err}
	}
}

// runner executes statements against a pool or a transaction.
type runner struct {
	ext sqlx.ExtContext
	s   *store
}

func (r runner) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.ext.ExecContext(ctx, r.ext.Rebind(query), args...)
	if err != nil {
		return 0, r.s.classify("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.s.classify("rows affected", err)
	}
	return n, nil
}

func (r runner) Get(ctx context.Context, dest any, query string, args ...any) error {
	if err := sqlx.GetContext(ctx, r.ext, dest, r.ext.Rebind(query), args...); err != nil {
		return r.s.classify("get", err)
	}
	return nil
}

func (r runner) Select(ctx context.Context, dest any, query string, args ...any) error {
	if err := sqlx.SelectContext(ctx, r.ext, dest, r.ext.Rebind(query), args...); err != nil {
		return r.s.classify("select", err)
	}
	return nil
}
