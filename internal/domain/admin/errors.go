package admin

import "errors"

var (
	ErrAdminNotFound     = errors.New("admin not found")
	ErrInvalidLevel      = errors.New("invalid admin level")
	ErrCannotRemoveOwner = errors.New("the owner cannot be removed")
	ErrInsufficientRank  = errors.New("cannot manage an admin of equal or higher level")
	ErrEmptyTargets      = errors.New("no target accounts given")
	ErrZeroDelta         = errors.New("delta must not be zero")
)
