package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

const accountColumns = `id, display_name, credits, total_earned, joined_at, referrer_id, is_banned, last_active`

// Repository persists accounts. Methods with a Tx suffix run on the caller's
// transaction; the others run directly on the backend.
type Repository struct {
	db sqlstore.Backend
}

func NewRepository(db sqlstore.Backend) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id int64) (*Account, error) {
	return r.GetTx(ctx, r.db, id)
}

func (r *Repository) GetTx(ctx context.Context, q sqlstore.Querier, id int64) (*Account, error) {
	var a Account
	err := q.Get(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *Repository) ExistsTx(ctx context.Context, q sqlstore.Querier, id int64) (bool, error) {
	var n int64
	if err := q.Get(ctx, &n, `SELECT COUNT(*) FROM accounts WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	return n > 0, nil
}

// InsertIfAbsentTx inserts a and reports whether a row was created.
func (r *Repository) InsertIfAbsentTx(ctx context.Context, q sqlstore.Querier, a *Account) (bool, error) {
	n, err := q.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.DisplayName, a.Credits, a.TotalEarned, a.JoinedAt, a.ReferrerID, a.IsBanned, a.LastActive)
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) Adjust(ctx context.Context, id, delta int64) error {
	return r.AdjustTx(ctx, r.db, id, delta)
}

// AdjustTx applies delta as one relative update. Only positive deltas count
// towards total_earned.
func (r *Repository) AdjustTx(ctx context.Context, q sqlstore.Querier, id, delta int64) error {
	var (
		n   int64
		err error
	)
	if delta > 0 {
		n, err = q.Exec(ctx, `
			UPDATE accounts
			SET credits = credits + ?, total_earned = total_earned + ?
			WHERE id = ?
		`, delta, delta, id)
	} else {
		n, err = q.Exec(ctx, `UPDATE accounts SET credits = credits + ? WHERE id = ?`, delta, id)
	}
	if err != nil {
		return fmt.Errorf("adjust credits: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Repository) SetBanned(ctx context.Context, id int64, banned bool) error {
	return r.update(ctx, "set banned", `UPDATE accounts SET is_banned = ? WHERE id = ?`, banned, id)
}

func (r *Repository) ResetCredits(ctx context.Context, id int64) error {
	return r.update(ctx, "reset credits", `UPDATE accounts SET credits = 0 WHERE id = ?`, id)
}

func (r *Repository) UpdateDisplayName(ctx context.Context, id int64, name string) error {
	return r.update(ctx, "update display name", `UPDATE accounts SET display_name = ? WHERE id = ?`, name, id)
}

func (r *Repository) Touch(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, "touch", `UPDATE accounts SET last_active = ? WHERE id = ?`, at, id)
}

func (r *Repository) update(ctx context.Context, op, query string, args ...any) error {
	n, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteTx removes the account, its claim history and every back-reference
// from accounts it referred.
func (r *Repository) DeleteTx(ctx context.Context, q sqlstore.Querier, id int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM claims WHERE account_id = ?`, id); err != nil {
		return fmt.Errorf("delete claims: %w", err)
	}
	if _, err := q.Exec(ctx, `UPDATE accounts SET referrer_id = NULL WHERE referrer_id = ?`, id); err != nil {
		return fmt.Errorf("clear referrer: %w", err)
	}
	n, err := q.Exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Repository) Stats(ctx context.Context, id int64) (*Stats, error) {
	var s Stats
	err := r.db.Get(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM accounts WHERE referrer_id = ?) AS referrals,
			(SELECT COUNT(*) FROM claims WHERE account_id = ?) AS codes_claimed,
			(SELECT COALESCE(SUM(rc.amount), 0)
			   FROM claims c JOIN redeem_codes rc ON rc.code = c.code
			  WHERE c.account_id = ?) AS credits_from_codes
	`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}
	return &s, nil
}

func (r *Repository) LedgerStats(ctx context.Context) (*LedgerStats, error) {
	var s LedgerStats
	err := r.db.Get(ctx, &s, `
		SELECT
			COUNT(*) AS total_accounts,
			COALESCE(SUM(CASE WHEN credits > 0 THEN 1 ELSE 0 END), 0) AS funded_accounts,
			COALESCE(SUM(CASE WHEN is_banned THEN 1 ELSE 0 END), 0) AS banned_accounts,
			COALESCE(SUM(credits), 0) AS total_credits,
			COALESCE(SUM(total_earned), 0) AS total_earned
		FROM accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	return &s, nil
}

func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	return r.list(ctx, "leaderboard", `
		SELECT `+accountColumns+` FROM accounts
		WHERE is_banned = ?
		ORDER BY credits DESC, id ASC
		LIMIT ?
	`, false, limit)
}

func (r *Repository) ListMinCredits(ctx context.Context, min int64, limit int) ([]Account, error) {
	return r.list(ctx, "list by min credits", `
		SELECT `+accountColumns+` FROM accounts
		WHERE credits >= ?
		ORDER BY credits DESC, id ASC
		LIMIT ?
	`, min, limit)
}

func (r *Repository) ListMaxCredits(ctx context.Context, max int64, limit int) ([]Account, error) {
	return r.list(ctx, "list by max credits", `
		SELECT `+accountColumns+` FROM accounts
		WHERE credits <= ?
		ORDER BY credits ASC, id ASC
		LIMIT ?
	`, max, limit)
}

func (r *Repository) ListInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]Account, error) {
	return r.list(ctx, "list inactive", `
		SELECT `+accountColumns+` FROM accounts
		WHERE last_active < ? AND is_banned = ?
		ORDER BY last_active ASC, id ASC
		LIMIT ?
	`, cutoff, false, limit)
}

// ListJoinedBetween returns accounts registered within [from, to], oldest
// first.
func (r *Repository) ListJoinedBetween(ctx context.Context, from, to time.Time, limit int) ([]Account, error) {
	return r.list(ctx, "list joined between", `
		SELECT `+accountColumns+` FROM accounts
		WHERE joined_at >= ? AND joined_at <= ?
		ORDER BY joined_at ASC, id ASC
		LIMIT ?
	`, from, to, limit)
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Account, error) {
	return r.list(ctx, "list recent", `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY joined_at DESC, id DESC
		LIMIT ?
	`, limit)
}

type stamp struct {
	At time.Time `db:"at"`
}

// DailyStats buckets registrations and claims made since by UTC day. Days
// without activity are absent.
func (r *Repository) DailyStats(ctx context.Context, since time.Time) (map[string]*DailyStat, error) {
	days := make(map[string]*DailyStat)
	bucket := func(at time.Time) *DailyStat {
		day := at.UTC().Format(time.DateOnly)
		d, ok := days[day]
		if !ok {
			d = &DailyStat{Day: day}
			days[day] = d
		}
		return d
	}

	var joins []stamp
	if err := r.db.Select(ctx, &joins, `SELECT joined_at AS at FROM accounts WHERE joined_at >= ?`, since); err != nil {
		return nil, fmt.Errorf("daily registrations: %w", err)
	}
	for _, s := range joins {
		bucket(s.At).NewAccounts++
	}

	var claims []stamp
	if err := r.db.Select(ctx, &claims, `SELECT claimed_at AS at FROM claims WHERE claimed_at >= ?`, since); err != nil {
		return nil, fmt.Errorf("daily claims: %w", err)
	}
	for _, s := range claims {
		bucket(s.At).Claims++
	}
	return days, nil
}

// Search matches display names case-insensitively, or an exact id when
// query is numeric.
func (r *Repository) Search(ctx context.Context, query string, id int64, limit int) ([]Account, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return r.list(ctx, "search accounts", `
		SELECT `+accountColumns+` FROM accounts
		WHERE LOWER(display_name) LIKE ? ESCAPE '\' OR id = ?
		ORDER BY id ASC
		LIMIT ?
	`, pattern, id, limit)
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]Account, error) {
	accounts := make([]Account, 0)
	if err := r.db.Select(ctx, &accounts, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return accounts, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
