package errors

import "errors"

var (
	ErrInvalidLeaseInput  = errors.New("invalid lease input")
	ErrUnknownWorkType    = errors.New("unknown work type")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrConflict           = errors.New("concurrent update conflict")
)
