package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// NewPostgres wraps a pooled PostgreSQL connection. Concurrent writers rely
// on row-level locking taken by conditional UPDATE statements.
func NewPostgres(db *sqlx.DB) Backend {
	return newStore(db, EnginePostgres, isPostgresUnique, postgresTxOptions)
}

func postgresTxOptions(opts TxOptions) *sql.TxOptions {
	return &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
}

func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
