package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound         = errors.New("analysis not found")
	ErrInvalidLimit     = errors.New("invalid history limit")
	// ErrCounterpartOwner means a counterpart id is already stored for another user.
	ErrCounterpartOwner = errors.New("counterpart belongs to another user")
)
