package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

const codeColumns = `code, amount, max_uses, current_uses, expiry_minutes, created_at, is_active`

// Repository persists codes and claims.
type Repository struct {
	db sqlstore.Backend
}

func NewRepository(db sqlstore.Backend) *Repository {
	return &Repository{db: db}
}

// Upsert inserts c or replaces every definition field of an existing code.
// current_uses is preserved; a row whose uses already exceed the new cap is
// left untouched and reported as not written.
func (r *Repository) Upsert(ctx context.Context, c *Code) (bool, error) {
	n, err := r.db.Exec(ctx, `
		INSERT INTO redeem_codes (`+codeColumns+`)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			amount = excluded.amount,
			max_uses = excluded.max_uses,
			expiry_minutes = excluded.expiry_minutes,
			created_at = excluded.created_at,
			is_active = excluded.is_active
		WHERE redeem_codes.current_uses <= excluded.max_uses
	`, c.Code, c.Amount, c.MaxUses, c.ExpiryMinutes, c.CreatedAt, c.IsActive)
	if err != nil {
		return false, fmt.Errorf("upsert code: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) Get(ctx context.Context, code string) (*Code, error) {
	return r.GetTx(ctx, r.db, code)
}

func (r *Repository) GetTx(ctx context.Context, q sqlstore.Querier, code string) (*Code, error) {
	var c Code
	err := q.Get(ctx, &c, `SELECT `+codeColumns+` FROM redeem_codes WHERE code = ?`, code)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("get code: %w", err)
	}
	return &c, nil
}

func (r *Repository) ClaimExistsTx(ctx context.Context, q sqlstore.Querier, accountID int64, code string) (bool, error) {
	var n int64
	err := q.Get(ctx, &n, `SELECT COUNT(*) FROM claims WHERE account_id = ? AND code = ?`, accountID, code)
	if err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return n > 0, nil
}

// IncrementUsesTx takes one use of code. It reports false when the code is
// exhausted or inactive at the moment the row is updated.
func (r *Repository) IncrementUsesTx(ctx context.Context, q sqlstore.Querier, code string) (bool, error) {
	n, err := q.Exec(ctx, `
		UPDATE redeem_codes
		SET current_uses = current_uses + 1
		WHERE code = ? AND current_uses < max_uses AND is_active = ?
	`, code, true)
	if err != nil {
		return false, fmt.Errorf("increment uses: %w", err)
	}
	return n == 1, nil
}

// InsertClaimTx records the claim. A duplicate surfaces as sqlstore.ErrConflict.
func (r *Repository) InsertClaimTx(ctx context.Context, q sqlstore.Querier, accountID int64, code string, at time.Time) error {
	_, err := q.Exec(ctx, `INSERT INTO claims (account_id, code, claimed_at) VALUES (?, ?, ?)`, accountID, code, at)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, code string, active bool) error {
	n, err := r.db.Exec(ctx, `UPDATE redeem_codes SET is_active = ? WHERE code = ?`, active, code)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// Delete removes the definition. Claims are kept so a redefined code cannot
// be claimed twice by the same account.
func (r *Repository) Delete(ctx context.Context, code string) error {
	n, err := r.db.Exec(ctx, `DELETE FROM redeem_codes WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	if n == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *Repository) ListAll(ctx context.Context) ([]Code, error) {
	return r.list(ctx, "list codes", `SELECT `+codeColumns+` FROM redeem_codes ORDER BY created_at DESC, code ASC`)
}

func (r *Repository) ListByActive(ctx context.Context, active bool) ([]Code, error) {
	return r.list(ctx, "list codes by state", `
		SELECT `+codeColumns+` FROM redeem_codes
		WHERE is_active = ?
		ORDER BY created_at DESC, code ASC
	`, active)
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]Code, error) {
	codes := make([]Code, 0)
	if err := r.db.Select(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return codes, nil
}

// Claimants returns the accounts that claimed code, oldest claim first.
func (r *Repository) Claimants(ctx context.Context, code string) ([]int64, error) {
	ids := make([]int64, 0)
	err := r.db.Select(ctx, &ids, `
		SELECT account_id FROM claims
		WHERE code = ?
		ORDER BY claimed_at ASC, account_id ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("list claimants: %w", err)
	}
	return ids, nil
}

// History returns the most recent claims of an account. Amount is zero for
// codes deleted since.
func (r *Repository) History(ctx context.Context, accountID int64, limit int) ([]ClaimRecord, error) {
	records := make([]ClaimRecord, 0)
	err := r.db.Select(ctx, &records, `
		SELECT c.code, COALESCE(rc.amount, 0) AS amount, c.claimed_at
		FROM claims c
		LEFT JOIN redeem_codes rc ON rc.code = c.code
		WHERE c.account_id = ?
		ORDER BY c.claimed_at DESC, c.code ASC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim history: %w", err)
	}
	return records, nil
}
