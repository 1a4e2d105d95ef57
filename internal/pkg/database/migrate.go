package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate applies every pending migration for the given engine.
func Migrate(ctx context.Context, db *sqlx.DB, engine sqlstore.Engine) error {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch engine {
	case sqlstore.EnginePostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	case sqlstore.EngineSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	default:
		return fmt.Errorf("migrate: unknown engine %q", engine)
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migrate: new provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	for _, r := range results {
		log.Info().
			Str("engine", string(engine)).
			Str("migration", r.Source.Path).
			Dur("took", r.Duration).
			Msg("Applied migration")
	}
	return nil
}
