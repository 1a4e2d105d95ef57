package admin

// Permission names an administrative capability.
type Permission string

const (
	// Accounts
	PermViewAccounts   Permission = "accounts.view"
	PermBanAccounts    Permission = "accounts.ban"
	PermAdjustCredits  Permission = "accounts.credits"
	PermDeleteAccounts Permission = "accounts.delete"

	// Codes
	PermViewCodes   Permission = "codes.view"
	PermManageCodes Permission = "codes.manage"

	// System
	PermViewStats     Permission = "stats.view"
	PermManageAdmins  Permission = "admins.manage"
	PermTakeSnapshots Permission = "snapshots.take"
)

// LevelPermissions maps levels to their permissions
var LevelPermissions = map[Level][]Permission{
	LevelOwner: {
		PermViewAccounts, PermBanAccounts, PermAdjustCredits, PermDeleteAccounts,
		PermViewCodes, PermManageCodes,
		PermViewStats, PermManageAdmins, PermTakeSnapshots,
	},
	LevelAdmin: {
		PermViewAccounts, PermBanAccounts, PermAdjustCredits, PermDeleteAccounts,
		PermViewCodes, PermManageCodes,
		PermViewStats, PermTakeSnapshots,
	},
	LevelModerator: {
		PermViewAccounts, PermBanAccounts,
		PermViewCodes,
		PermViewStats,
	},
}

// LevelHierarchy defines level ranks (higher = more authority)
var LevelHierarchy = map[Level]int{
	LevelOwner:     100,
	LevelAdmin:     80,
	LevelModerator: 60,
}
