package errors

import "errors"

var (
	ErrInvalidTransactionInput = errors.New("invalid transaction input")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrInsufficientBalance     = errors.New("wallet balance is insufficient")
	ErrProviderUnavailable     = errors.New("payment provider is unavailable")
	ErrProviderResponseInvalid = errors.New("payment provider response is malformed")
	ErrAlreadySettled          = errors.New("transaction wallet settlement already applied")
	ErrConflict                = errors.New("concurrent update conflict")
)
