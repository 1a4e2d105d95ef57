package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

type Repository struct {
	db sqlstore.Backend
}

func NewRepository(db sqlstore.Backend) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, l *Log) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO lookup_logs (account_id, api_type, input_data, result, looked_up_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.AccountID, l.APIType, l.InputData, l.Result, l.LookedUpAt)
	if err != nil {
		return fmt.Errorf("insert lookup: %w", err)
	}
	return nil
}

func (r *Repository) CountByType(ctx context.Context) ([]TypeCount, error) {
	return r.counts(ctx, `
		SELECT api_type, COUNT(*) AS count FROM lookup_logs
		GROUP BY api_type
		ORDER BY count DESC, api_type ASC
	`)
}

func (r *Repository) CountByTypeFor(ctx context.Context, accountID int64) ([]TypeCount, error) {
	return r.counts(ctx, `
		SELECT api_type, COUNT(*) AS count FROM lookup_logs
		WHERE account_id = ?
		GROUP BY api_type
		ORDER BY count DESC, api_type ASC
	`, accountID)
}

func (r *Repository) counts(ctx context.Context, query string, args ...any) ([]TypeCount, error) {
	counts := make([]TypeCount, 0)
	if err := r.db.Select(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count lookups: %w", err)
	}
	return counts, nil
}

func (r *Repository) Recent(ctx context.Context, accountID int64, limit int) ([]Log, error) {
	logs := make([]Log, 0)
	err := r.db.Select(ctx, &logs, `
		SELECT id, account_id, api_type, input_data, result, looked_up_at
		FROM lookup_logs
		WHERE account_id = ?
		ORDER BY looked_up_at DESC, id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent lookups: %w", err)
	}
	return logs, nil
}

// CountSince counts lookups by accountID made strictly after cutoff.
func (r *Repository) CountSince(ctx context.Context, accountID int64, cutoff time.Time) (int64, error) {
	var n int64
	if err := r.db.Get(ctx, &n, `SELECT COUNT(*) FROM lookup_logs WHERE account_id = ? AND looked_up_at > ?`, accountID, cutoff); err != nil {
		return 0, fmt.Errorf("count recent lookups: %w", err)
	}
	return n, nil
}

func (r *Repository) Total(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Get(ctx, &n, `SELECT COUNT(*) FROM lookup_logs`); err != nil {
		return 0, fmt.Errorf("count lookups: %w", err)
	}
	return n, nil
}
