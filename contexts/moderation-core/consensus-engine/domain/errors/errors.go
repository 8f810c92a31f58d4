package errors

import "errors"

var (
	ErrInvalidVoteInput  = errors.New("invalid vote input")
	ErrItemNotFound      = errors.New("validatable item not found")
	ErrItemDeleted       = errors.New("validatable item is deleted")
	ErrSelfValidation    = errors.New("validators may not vote on their own submission")
	ErrDuplicateVote     = errors.New("validator already has an active vote on this item")
	ErrVoteQuotaExceeded = errors.New("validator reached the active vote quota")
	ErrItemDecided       = errors.New("item already has a terminal status")
	ErrNotInConflict     = errors.New("item is not in conflict status")
	ErrAlreadyResolved   = errors.New("conflict is already resolved")
	ErrInvalidResolution = errors.New("invalid conflict resolution input")
	ErrConflict          = errors.New("concurrent update conflict")
)
