package account

import "time"

// Account is a ledger entry keyed by the messaging platform's user id.
type Account struct {
	ID          int64     `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Credits     int64     `db:"credits" json:"credits"`
	TotalEarned int64     `db:"total_earned" json:"total_earned"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
	ReferrerID  *int64    `db:"referrer_id" json:"referrer_id,omitempty"`
	IsBanned    bool      `db:"is_banned" json:"is_banned"`
	LastActive  time.Time `db:"last_active" json:"last_active"`
}

// Stats summarizes one account's referral and redemption activity.
type Stats struct {
	Referrals        int64 `db:"referrals" json:"referrals"`
	CodesClaimed     int64 `db:"codes_claimed" json:"codes_claimed"`
	CreditsFromCodes int64 `db:"credits_from_codes" json:"credits_from_codes"`
}

// LedgerStats summarizes the whole ledger.
type LedgerStats struct {
	TotalAccounts  int64 `db:"total_accounts" json:"total_accounts"`
	FundedAccounts int64 `db:"funded_accounts" json:"funded_accounts"`
	BannedAccounts int64 `db:"banned_accounts" json:"banned_accounts"`
	TotalCredits   int64 `db:"total_credits" json:"total_credits"`
	TotalEarned    int64 `db:"total_earned" json:"total_earned"`
}

// DailyStat counts registrations and redemptions on one UTC day.
type DailyStat struct {
	Day         string `json:"day"`
	NewAccounts int64  `json:"new_accounts"`
	Claims      int64  `json:"claims"`
}

// Thresholds used by the premium and low-credit listings.
const (
	PremiumCredits = 100
	LowCredits     = 5
)
