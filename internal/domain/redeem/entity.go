package redeem

import "time"

// Code is a redeemable credit voucher.
type Code struct {
	Code          string    `db:"code" json:"code"`
	Amount        int64     `db:"amount" json:"amount"`
	MaxUses       int       `db:"max_uses" json:"max_uses"`
	CurrentUses   int       `db:"current_uses" json:"current_uses"`
	ExpiryMinutes int       `db:"expiry_minutes" json:"expiry_minutes"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	IsActive      bool      `db:"is_active" json:"is_active"`
}

// Expiry is the validity window, zero when the code never expires.
func (c *Code) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

// ExpiresAt reports when the code stops being redeemable, if ever.
func (c *Code) ExpiresAt() (time.Time, bool) {
	if c.ExpiryMinutes <= 0 {
		return time.Time{}, false
	}
	return c.CreatedAt.Add(c.Expiry()), true
}

// ExpiredAt reports whether now is past the expiry instant.
func (c *Code) ExpiredAt(now time.Time) bool {
	at, ok := c.ExpiresAt()
	return ok && now.After(at)
}

// Exhausted reports whether every use has been claimed.
func (c *Code) Exhausted() bool {
	return c.CurrentUses >= c.MaxUses
}

// ClaimRecord is one redemption in an account's history.
type ClaimRecord struct {
	Code      string    `db:"code" json:"code"`
	Amount    int64     `db:"amount" json:"amount"`
	ClaimedAt time.Time `db:"claimed_at" json:"claimed_at"`
}

// UsageStats describes how far a code has been redeemed.
type UsageStats struct {
	Code              string     `json:"code"`
	Amount            int64      `json:"amount"`
	MaxUses           int        `json:"max_uses"`
	CurrentUses       int        `json:"current_uses"`
	DistinctClaimants int        `json:"distinct_claimants"`
	Claimants         []int64    `json:"claimants"`
	IsActive          bool       `json:"is_active"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// ClaimStatus is the outcome of a redemption attempt.
type ClaimStatus string

const (
	StatusGranted         ClaimStatus = "granted"
	StatusAlreadyClaimed  ClaimStatus = "already_claimed"
	StatusNotFound        ClaimStatus = "not_found"
	StatusInactive        ClaimStatus = "inactive"
	StatusLimitReached    ClaimStatus = "limit_reached"
	StatusExpired         ClaimStatus = "expired"
	StatusAccountNotFound ClaimStatus = "account_not_found"
	StatusThrottled       ClaimStatus = "throttled"
	StatusStorageFailure  ClaimStatus = "storage_failure"
)

// ClaimResult carries the status and, when granted, the credited amount.
// Detail holds the engine diagnostic for StatusStorageFailure.
type ClaimResult struct {
	Status ClaimStatus `json:"status"`
	Amount int64       `json:"amount,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Granted reports whether credits were applied.
func (r ClaimResult) Granted() bool { return r.Status == StatusGranted }

// ListFilter selects codes by state.
type ListFilter string

const (
	FilterAll      ListFilter = "all"
	FilterActive   ListFilter = "active"
	FilterInactive ListFilter = "inactive"
	FilterExpired  ListFilter = "expired"
)
