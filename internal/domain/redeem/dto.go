package redeem

// ClaimRequest redeems a code for an account.
type ClaimRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	Code      string `json:"code" validate:"required,redeem_code"`
}

// DefineRequest creates or replaces a code. Expiry accepts "30m", "2h",
// "1h30m", bare minutes or "none".
type DefineRequest struct {
	Code    string `json:"code" validate:"required,redeem_code"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	MaxUses int    `json:"max_uses" validate:"required,gt=0"`
	Expiry  string `json:"expiry" validate:"max=32"`
}

// GenerateRequest defines a code with a random PREFIX-XXXXXX name.
type GenerateRequest struct {
	Prefix  string `json:"prefix" validate:"omitempty,alphanum,max=16"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	MaxUses int    `json:"max_uses" validate:"required,gt=0"`
	Expiry  string `json:"expiry" validate:"max=32"`
}
