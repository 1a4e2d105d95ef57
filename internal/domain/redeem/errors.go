package redeem

import "errors"

var (
	// ErrCodeNotFound is returned when the code does not exist
	ErrCodeNotFound = errors.New("redeem code not found")

	// ErrInvalidCode is returned for empty or malformed codes
	ErrInvalidCode = errors.New("invalid redeem code")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidMaxUses is returned when max uses is <= 0
	ErrInvalidMaxUses = errors.New("invalid max uses: must be greater than 0")

	// ErrInvalidExpiry is returned for negative or sub-minute expiry windows
	ErrInvalidExpiry = errors.New("invalid expiry: must be whole minutes")

	// ErrMaxUsesBelowCurrent is returned when a redefinition would cap a code
	// below the uses already claimed
	ErrMaxUsesBelowCurrent = errors.New("max uses is below uses already claimed")
)
