package account

// CreateRequest registers an account on first contact.
type CreateRequest struct {
	ID          int64  `json:"id" validate:"required,gt=0"`
	DisplayName string `json:"display_name" validate:"max=128"`
	ReferrerID  *int64 `json:"referrer_id,omitempty" validate:"omitempty,gt=0"`
}

// CreateResponse reports whether the account was new.
type CreateResponse struct {
	Created bool     `json:"created"`
	Account *Account `json:"account"`
}

// AdjustRequest carries a signed credit delta.
type AdjustRequest struct {
	Delta int64 `json:"delta" validate:"ne=0"`
}

// RenameRequest changes the display name.
type RenameRequest struct {
	DisplayName string `json:"display_name" validate:"max=128"`
}
