package httptransport

// PayoutRequest asks for a disbursement to the caller's mobile-money wallet.
type PayoutRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	PhoneNumber string `json:"phone_number"`
	Network     string `json:"network"`
	Note        string `json:"note,omitempty"`
}

// DepositRequest starts an inbound collection from the caller's mobile-money
// account.
type DepositRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	PhoneNumber string `json:"phone_number"`
	Network     string `json:"network"`
	Note        string `json:"note,omitempty"`
}

type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	Direction     string `json:"direction"`
	AmountMinor   int64  `json:"amount_minor"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	WalletUpdated bool   `json:"wallet_updated"`
}

type WalletResponse struct {
	UserID                    string `json:"user_id"`
	AccruedMinor              int64  `json:"accrued_minor"`
	AudioBenefitMinor         int64  `json:"audio_benefit_minor"`
	ImageBenefitMinor         int64  `json:"image_benefit_minor"`
	TranscriptionBenefitMinor int64  `json:"transcription_benefit_minor"`
	DepositMinor              int64  `json:"deposit_minor"`
	TotalPayoutMinor          int64  `json:"total_payout_minor"`
	BalanceMinor              int64  `json:"balance_minor"`
}

// ProviderCallbackRequest is the asynchronous confirmation posted by the
// payment processor.
type ProviderCallbackRequest struct {
	TransactionID string `json:"transaction_id"`
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
