package account

import "errors"

var (
	// ErrAccountNotFound is returned when no account has the given id
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAccountID is returned for non-positive ids
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrInvalidDisplayName is returned for names that are too long
	ErrInvalidDisplayName = errors.New("invalid display name")

	// ErrInvalidRange is returned when a date range ends before it starts
	ErrInvalidRange = errors.New("invalid date range")
)
