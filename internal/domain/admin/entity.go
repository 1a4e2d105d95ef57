package admin

import "time"

// Level is an administrator's authority.
type Level string

const (
	LevelOwner     Level = "owner"
	LevelAdmin     Level = "admin"
	LevelModerator Level = "moderator"
)

// Admin is an account granted administrative rights.
type Admin struct {
	ID      int64     `db:"id" json:"id"`
	Level   Level     `db:"level" json:"level"`
	AddedBy *int64    `db:"added_by" json:"added_by,omitempty"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// Can reports whether level grants perm.
func (l Level) Can(perm Permission) bool {
	for _, p := range LevelPermissions[l] {
		if p == perm {
			return true
		}
	}
	return false
}

// Outranks reports whether l sits strictly above other.
func (l Level) Outranks(other Level) bool {
	return LevelHierarchy[l] > LevelHierarchy[other]
}

// BulkResult reports a bulk credit adjustment.
type BulkResult struct {
	Accounts int   `json:"accounts"`
	Delta    int64 `json:"delta"`
}

// SweepResult reports an expired-code cleanup.
type SweepResult struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}
