package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

// Options selects and sizes the storage engine.
type Options struct {
	Engine       sqlstore.Engine
	SQLitePath   string
	DatabaseURL  string
	MaxOpenConns int
}

// OpenBackend connects to the configured engine, migrates it and returns it
// behind the engine-neutral storage contract.
func OpenBackend(ctx context.Context, opts Options) (sqlstore.Backend, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch opts.Engine {
	case sqlstore.EngineSQLite:
		db, err = NewSQLite(opts.SQLitePath)
	case sqlstore.EnginePostgres:
		db, err = NewPostgres(opts.DatabaseURL, opts.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", opts.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Engine, err)
	}

	if err := Migrate(ctx, db, opts.Engine); err != nil {
		db.Close()
		return nil, err
	}

	if opts.Engine == sqlstore.EngineSQLite {
		return sqlstore.NewSQLite(db), nil
	}
	return sqlstore.NewPostgres(db), nil
}

// CloseBackend closes the storage backend
func CloseBackend(b sqlstore.Backend) {
	if b == nil {
		return
	}
	if err := b.Close(); err != nil {
		log.Error().Err(err).Str("engine", string(b.Engine())).Msg("Error closing storage backend")
		return
	}
	log.Info().Str("engine", string(b.Engine())).Msg("Storage backend closed")
}
