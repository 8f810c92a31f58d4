package entities

import "time"

type TransactionStatus string

const (
	TransactionStatusNew     TransactionStatus = "new"
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

type Direction string

const (
	DirectionDeposit Direction = "deposit"
	DirectionPayout  Direction = "payout"
)

// Provider status codes as returned on the wire.
const (
	ProviderCodeSuccess   = "000"
	ProviderCodePending   = "004"
	ProviderCodeDuplicate = "106"
	ProviderCodeFailed    = "107"
)

// Transaction is one money movement against the payment provider. Amounts
// are minor units. AcceptedByProvider records that the provider acknowledged
// the request; WalletUpdated is the settlement idempotency guard.
type Transaction struct {
	TransactionID      string
	UserID             string
	Direction          Direction
	AmountMinor        int64
	PhoneNumber        string
	Network            string
	Note               string
	Status             TransactionStatus
	AcceptedByProvider bool
	WalletUpdated      bool
	StatusMessage      string
	ResponseData       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terminal reports whether the provider outcome is final.
func (t Transaction) Terminal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// StatusFromProviderCode maps a provider response code onto the transaction
// lifecycle. A duplicate submission means the original request is in flight,
// so it maps to pending. Unknown codes report ok=false and must not change
// transaction state.
func StatusFromProviderCode(code string) (TransactionStatus, bool) {
	switch code {
	case ProviderCodeSuccess:
		return TransactionStatusSuccess, true
	case ProviderCodePending, ProviderCodeDuplicate:
		return TransactionStatusPending, true
	case ProviderCodeFailed:
		return TransactionStatusFailed, true
	default:
		return "", false
	}
}
