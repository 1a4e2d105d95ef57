// Package referral grants the one-time bonus a referrer earns when an
// account it invited registers.
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

const notifyTimeout = 10 * time.Second

// Notifier delivers a text message to an account's chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Referrer is one row of the top-referrers board.
type Referrer struct {
	AccountID   int64  `db:"account_id" json:"account_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	Referrals   int64  `db:"referrals" json:"referrals"`
}

// Engine applies the referral bonus. It implements account.ReferralGranter.
type Engine struct {
	db       sqlstore.Backend
	accounts *account.Repository
	bonus    int64
	notifier Notifier
}

// NewEngine creates a referral engine. notifier may be nil.
func NewEngine(db sqlstore.Backend, accounts *account.Repository, bonus int64, notifier Notifier) *Engine {
	return &Engine{db: db, accounts: accounts, bonus: bonus, notifier: notifier}
}

// Bonus is the fixed amount credited per referral.
func (e *Engine) Bonus() int64 { return e.bonus }

// GrantTx credits the referrer on the creating transaction. It is only
// called when the referred account row was actually inserted, which is what
// bounds the bonus to once per referred account.
func (e *Engine) GrantTx(ctx context.Context, q sqlstore.Querier, referrerID, referredID int64) error {
	if e.bonus <= 0 {
		return nil
	}
	if err := e.accounts.AdjustTx(ctx, q, referrerID, e.bonus); err != nil {
		return fmt.Errorf("referral bonus for %d: %w", referrerID, err)
	}
	log.Info().
		Int64("referrer_id", referrerID).
		Int64("referred_id", referredID).
		Int64("amount", e.bonus).
		Msg("referral bonus granted")
	return nil
}

// Announce tells the referrer about the bonus. Delivery is best effort and
// happens off the request path.
func (e *Engine) Announce(referrerID, referredID int64) {
	if e.notifier == nil || e.bonus <= 0 {
		return
	}
	text := fmt.Sprintf("Referral +%d credits! Someone joined with your link.", e.bonus)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, referrerID, text); err != nil {
			log.Warn().Err(err).
				Int64("referrer_id", referrerID).
				Int64("referred_id", referredID).
				Msg("referral notice not delivered")
		}
	}()
}

// CountReferrals returns how many accounts name id as their referrer.
func (e *Engine) CountReferrals(ctx context.Context, id int64) (int64, error) {
	var n int64
	if err := e.db.Get(ctx, &n, `SELECT COUNT(*) FROM accounts WHERE referrer_id = ?`, id); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

// TopReferrers ranks referrers by the number of accounts they brought in.
func (e *Engine) TopReferrers(ctx context.Context, limit int) ([]Referrer, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	top := make([]Referrer, 0)
	err := e.db.Select(ctx, &top, `
		SELECT r.referrer_id AS account_id,
		       COALESCE(a.display_name, '') AS display_name,
		       COUNT(*) AS referrals
		FROM accounts r
		LEFT JOIN accounts a ON a.id = r.referrer_id
		WHERE r.referrer_id IS NOT NULL
		GROUP BY r.referrer_id, a.display_name
		ORDER BY referrals DESC, account_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	return top, nil
}
