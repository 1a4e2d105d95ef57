package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewSQLite wraps an embedded SQLite database. The pool is pinned to one
// connection so every statement and transaction in the process is
// serialized.
func NewSQLite(db *sqlx.DB) Backend {
	db.SetMaxOpenConns(1)
	return newStore(db, EngineSQLite, isSQLiteUnique, sqliteTxOptions)
}

// sqliteTxOptions drops isolation and access mode. With a single connection
// every transaction already runs alone, which is serializable.
func sqliteTxOptions(TxOptions) *sql.TxOptions {
	return &sql.TxOptions{}
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
