package admin

// AddAdminRequest grants admin rights to an account.
type AddAdminRequest struct {
	ID    int64  `json:"id" validate:"required,gt=0"`
	Level string `json:"level" validate:"admin_level"`
}

// BulkCreditsRequest adjusts many balances at once.
type BulkCreditsRequest struct {
	AccountIDs []int64 `json:"account_ids" validate:"required,min=1,max=1000,dive,gt=0"`
	Delta      int64   `json:"delta" validate:"ne=0"`
}
